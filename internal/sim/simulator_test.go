package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/legmpc/internal/control"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/ocp"
	"github.com/san-kum/legmpc/internal/robot"
)

func standingQ() []float64 {
	q := []float64{0, 0, 0.3181, 0, 0, 0}
	for i := 0; i < 4; i++ {
		q = append(q, 0, 0.67, -1.3)
	}
	return q
}

func newStandingSim(t *testing.T) (*Simulator, dynamo.State) {
	t.Helper()
	m, err := robot.Load("", robot.FloatingBase,
		[]string{"FL_foot", "RL_foot", "FR_foot", "RR_foot"}, make([]robot.ContactType, 4), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	pd, err := control.NewPD(m, standingQ(), 40, 1)
	if err != nil {
		t.Fatal(err)
	}
	s := New(pd, ocp.NewPlant(m, nil, 0.5), m.DimQ(), WithTorqueLimit(m.Limits().UMax))
	return s, dynamo.NewState(standingQ(), make([]float64, m.DimV()))
}

type countingMetric struct {
	steps int
	ticks int
}

func (c *countingMetric) Name() string                               { return "count" }
func (c *countingMetric) Observe(dynamo.State, dynamo.Control, float64) { c.steps++ }
func (c *countingMetric) Value() float64                             { return float64(c.steps) }
func (c *countingMetric) Reset()                                     { c.steps, c.ticks = 0, 0 }
func (c *countingMetric) OnTick(Tick)                                { c.ticks++ }

func TestSimulatorRun(t *testing.T) {
	s, x0 := newStandingSim(t)
	metric := &countingMetric{}
	s.AddMetric(metric)

	cfg := Config{Duration: 0.5, ControlPeriod: 0.02, Dt: 0.005, ValidateState: true}
	result, err := s.Run(context.Background(), x0, 0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("run errors: %v", result.Errors)
	}
	if result.StepsTaken != 100 || len(result.States) != 101 || len(result.Times) != 101 {
		t.Errorf("steps = %d, states = %d, times = %d", result.StepsTaken, len(result.States), len(result.Times))
	}
	if len(result.Ticks) != 25 || metric.ticks != 25 {
		t.Errorf("ticks = %d (metric %d), want 25", len(result.Ticks), metric.ticks)
	}
	if result.Metrics["count"] != 100 {
		t.Errorf("metric = %g, want 100", result.Metrics["count"])
	}
	if math.Abs(result.Times[100]-0.5) > 1e-9 {
		t.Errorf("final time = %g", result.Times[100])
	}
	final := result.States[len(result.States)-1]
	if math.Abs(final[2]-0.3181) > 5e-3 {
		t.Errorf("base height = %g, want near 0.3181", final[2])
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s, x0 := newStandingSim(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1, ControlPeriod: 0.02}},
		{"zero duration", Config{Dt: 0.005, Duration: 0, ControlPeriod: 0.02}},
		{"period below dt", Config{Dt: 0.005, Duration: 1, ControlPeriod: 0.001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Run(context.Background(), x0, 0, tt.cfg); !errors.Is(err, dynamo.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}
}

func TestRunWithCallbackStops(t *testing.T) {
	s, x0 := newStandingSim(t)
	steps := 0
	err := s.RunWithCallback(context.Background(), x0, 0, Config{Duration: 1, ControlPeriod: 0.02, Dt: 0.005},
		func(x dynamo.State, u dynamo.Control, t float64, tick *Tick) bool {
			if tick == nil {
				steps++
			}
			return steps < 10
		})
	if err != nil {
		t.Fatal(err)
	}
	if steps != 10 {
		t.Errorf("steps = %d, want 10", steps)
	}
}

func TestEnsembleRun(t *testing.T) {
	var jobs []Job
	for _, name := range []string{"a", "b", "c"} {
		s, x0 := newStandingSim(t)
		jobs = append(jobs, Job{Name: name, Sim: s, X0: x0, Cfg: Config{Duration: 0.1, ControlPeriod: 0.02, Dt: 0.005}})
	}
	results, err := NewEnsemble(2).Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r == nil || r.StepsTaken != 20 {
			t.Errorf("job %d result = %+v", i, r)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEnsemble(2).Run(ctx, jobs); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ensemble err = %v", err)
	}
}
