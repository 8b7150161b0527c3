package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
)

const scenarioYAML = `
name: smoke
description: two short standing runs
runs:
  - name: pd-stand
    preset: stand
    controller: pd
    duration: 0.04
  - preset: forward
    controller: pd
    duration: 0.02
    integrator: rk4
    step_length: [0.05, 0, 0]
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "smoke" || len(s.Runs) != 2 {
		t.Fatalf("scenario = %+v", s)
	}
	cfg, err := s.Runs[1].Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Duration != 0.02 || cfg.Sim.Integrator != "rk4" || cfg.Gait.Step[0] != 0.05 {
		t.Errorf("resolved = %+v %+v", cfg.Sim, cfg.Gait)
	}
	if s.Runs[0].ControllerName() != "pd" || (ScenarioRun{}).ControllerName() != "mpc" {
		t.Error("controller defaults wrong")
	}
}

func TestParseScenarioInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no runs", "name: empty\n"},
		{"no source", "runs:\n  - controller: pd\n"},
		{"unknown preset", "runs:\n  - preset: moonwalk\n"},
		{"negative duration", "runs:\n  - preset: stand\n    duration: -1\n"},
		{"short step", "runs:\n  - preset: stand\n    step_length: [0.1]\n"},
		{"malformed", "runs: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScenario([]byte(tt.yaml)); !errors.Is(err, dynamo.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestRunScenario(t *testing.T) {
	s, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	var seen []int
	outcomes, err := RunScenario(context.Background(), s, zap.NewNop(), func(i int, o Outcome) error {
		seen = append(seen, i)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 || len(seen) != 2 {
		t.Fatalf("outcomes = %d, callbacks = %v", len(outcomes), seen)
	}
	if got := outcomes[0].Result.StepsTaken; got != 16 {
		t.Errorf("first run steps = %d, want 16", got)
	}
	if got := outcomes[1].Result.StepsTaken; got != 8 {
		t.Errorf("second run steps = %d, want 8", got)
	}

	stop := errors.New("stop")
	outcomes, err = RunScenario(context.Background(), s, zap.NewNop(), func(int, Outcome) error { return stop })
	if !errors.Is(err, stop) || len(outcomes) != 1 {
		t.Errorf("callback error: err = %v, outcomes = %d", err, len(outcomes))
	}
}

func monteCarloConfig() *MonteCarloConfig {
	cfg := config.GetPreset("stand")
	cfg.Sim.Duration = 0.04
	cfg.MPC.Workers = 1
	return &MonteCarloConfig{
		Config:        cfg,
		Controller:    "pd",
		Trials:        3,
		Seed:          7,
		Workers:       2,
		HeightSigma:   0.005,
		TiltSigma:     0.01,
		VelocitySigma: 0.02,
		MinHeight:     0.15,
	}
}

func TestRunMonteCarlo(t *testing.T) {
	mc := monteCarloConfig()
	results, err := RunMonteCarlo(context.Background(), mc, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d trials", len(results))
	}
	for i, r := range results {
		if r.TrialID != i {
			t.Errorf("trial %d has id %d", i, r.TrialID)
		}
		if r.InitState[2] == mc.Config.Cost.QStanding[2] {
			t.Errorf("trial %d height not perturbed", i)
		}
	}
	if results[0].InitState[2] == results[1].InitState[2] {
		t.Error("trials share an initial state")
	}
	stable, unstable := MonteCarloStats(results)
	if stable != 3 || unstable != 0 {
		t.Errorf("stable/unstable = %d/%d, want 3/0", stable, unstable)
	}
	if _, _, n := MetricSummary(results, "stability"); n != 3 {
		t.Errorf("stability reported by %d trials", n)
	}

	again, err := RunMonteCarlo(context.Background(), mc, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	for i := range results {
		if results[i].InitState[2] != again[i].InitState[2] || results[i].InitState[3] != again[i].InitState[3] {
			t.Errorf("trial %d not reproduced by the same seed", i)
		}
	}
}

func TestMonteCarloInvalid(t *testing.T) {
	mc := monteCarloConfig()
	mc.Trials = 0
	mc.TiltSigma = -1
	if _, err := RunMonteCarlo(context.Background(), mc, zap.NewNop()); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
}

func TestMetricSummary(t *testing.T) {
	results := []MonteCarloResult{
		{Metrics: map[string]float64{"m": 1}},
		{Metrics: map[string]float64{"m": 3}},
		{Metrics: map[string]float64{}},
	}
	mean, std, n := MetricSummary(results, "m")
	if mean != 2 || n != 2 {
		t.Errorf("mean = %g, n = %d", mean, n)
	}
	if std < 1.41 || std > 1.42 {
		t.Errorf("std = %g, want sqrt(2)", std)
	}
}
