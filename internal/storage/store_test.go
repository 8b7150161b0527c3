package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/sim"
	"github.com/san-kum/legmpc/internal/solver"
)

func testResult() *sim.Result {
	return &sim.Result{
		States: []dynamo.State{
			{1.0, 0.0},
			{0.9, -0.1},
		},
		Controls: []dynamo.Control{
			{0.5},
		},
		Times: []float64{0.0, 0.01},
		Ticks: []sim.Tick{{
			Time:     0,
			Contacts: []bool{true, false},
			Diagnostics: solver.Diagnostics{
				Iterations: 3,
				KKTError:   1e-4,
				Converged:  true,
				Elapsed:    1500 * time.Microsecond,
			},
		}},
		Metrics: map[string]float64{
			"control_effort": 1.5,
		},
		StepsTaken: 1,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg := config.DefaultConfig()
	runID, err := st.Save("forward", "mpc", cfg, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	for _, name := range []string{"metadata.json", "config.yaml", "states.csv", "solver.csv"} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Name != "forward" || meta.Controller != "mpc" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Knots != cfg.OCP.Knots || meta.Ticks != 1 || meta.Steps != 1 {
		t.Errorf("knots = %d, ticks = %d, steps = %d", meta.Knots, meta.Ticks, meta.Steps)
	}
	if meta.Metrics["control_effort"] != 1.5 {
		t.Errorf("expected effort 1.5, got %f", meta.Metrics["control_effort"])
	}

	loaded, err := st.LoadConfig(runID)
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if loaded.OCP.Horizon != cfg.OCP.Horizon {
		t.Errorf("horizon = %g, want %g", loaded.OCP.Horizon, cfg.OCP.Horizon)
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("load states failed: %v", err)
	}
	if len(states) != 2 || len(times) != 2 {
		t.Fatalf("got %d states, %d times", len(states), len(times))
	}
	if len(states[1]) != 2 || states[1][0] != 0.9 || states[1][1] != -0.1 {
		t.Errorf("state = %v", states[1])
	}

	kkt, err := st.SolverColumn(runID, "kkt_error")
	if err != nil {
		t.Fatal(err)
	}
	if len(kkt) != 1 || kkt[0] != 1e-4 {
		t.Errorf("kkt = %v", kkt)
	}
	conv, err := st.SolverColumn(runID, "converged")
	if err != nil || conv[0] != 1 {
		t.Errorf("converged = %v, err %v", conv, err)
	}
	ms, err := st.SolverColumn(runID, "elapsed_ms")
	if err != nil || ms[0] != 1.5 {
		t.Errorf("elapsed = %v, err %v", ms, err)
	}
	if _, err := st.SolverColumn(runID, "nope"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	first, err := st.Save("forward", "mpc", config.DefaultConfig(), testResult())
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := st.Save("turn", "pd", config.DefaultConfig(), testResult())
	if err != nil {
		t.Fatal(err)
	}
	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("runs not newest first: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "missing")).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, "forward", "mpc", 0.01, 0.01, testResult()); err != nil {
		t.Fatal(err)
	}
	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Steps != 1 || len(data.States) != 2 || len(data.Ticks) != 1 {
		t.Errorf("export = %+v", data)
	}
	if !data.Ticks[0].Converged || data.Ticks[0].Iterations != 3 {
		t.Errorf("tick = %+v", data.Ticks[0])
	}
}
