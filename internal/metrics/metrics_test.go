package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/estimator"
	"github.com/san-kum/legmpc/internal/ocp"
	"github.com/san-kum/legmpc/internal/reference"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/sim"
	"github.com/san-kum/legmpc/internal/solver"
)

func newModel(t *testing.T) *robot.Quadruped {
	t.Helper()
	m, err := robot.Load("", robot.FloatingBase,
		[]string{"FL_foot", "RL_foot", "FR_foot", "RR_foot"}, make([]robot.ContactType, 4), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func standing() dynamo.State {
	q := []float64{0, 0, 0.3181, 0, 0, 0}
	for i := 0; i < 4; i++ {
		q = append(q, 0, 0.67, -1.3)
	}
	return dynamo.NewState(q, make([]float64, 18))
}

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	m.Observe(nil, dynamo.Control{3, 4}, 0)
	m.Observe(nil, dynamo.Control{0, 0}, 0)
	if m.Value() != 2.5 || m.Peak() != 5 {
		t.Errorf("value = %g, peak = %g", m.Value(), m.Peak())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero effort after reset")
	}
}

func TestEnergy(t *testing.T) {
	model := newModel(t)
	mass := model.Description().Mass
	g := model.Description().Gravity
	m := NewEnergy(model)

	x := standing()
	m.Observe(x, nil, 0)
	if want := mass * g * 0.3181; math.Abs(m.Value()-want) > 1e-9 {
		t.Errorf("energy at rest = %g, want %g", m.Value(), want)
	}

	m.Reset()
	x[18] = 2
	m.Observe(x, nil, 0)
	if want := mass*g*0.3181 + 0.5*mass*4; math.Abs(m.Value()-want) > 1e-9 {
		t.Errorf("energy moving = %g, want %g", m.Value(), want)
	}
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift(newModel(t))
	x := standing()
	m.Observe(x, nil, 0)
	x[2] *= 1.1
	m.Observe(x, nil, 0)
	if math.Abs(m.Value()-0.1) > 1e-9 {
		t.Errorf("drift = %g, want 0.1", m.Value())
	}
}

func TestStability(t *testing.T) {
	tests := []struct {
		name   string
		modify func(x dynamo.State)
		want   float64
	}{
		{"upright", func(dynamo.State) {}, 1},
		{"rolled", func(x dynamo.State) { x[3] = 0.8 }, 0},
		{"pitched", func(x dynamo.State) { x[4] = -0.8 }, 0},
		{"fallen", func(x dynamo.State) { x[2] = 0.05 }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStability(0.5, 0.15)
			x := standing()
			tt.modify(x)
			m.Observe(x, nil, 0)
			if m.Value() != tt.want {
				t.Errorf("stability = %g, want %g", m.Value(), tt.want)
			}
		})
	}
}

func TestCoMTracking(t *testing.T) {
	x := standing()
	m := NewCoMTracking(newModel(t), reference.Func(func(t float64) r3.Vector {
		return r3.Vector{X: t, Z: 0.3181}
	}))
	m.Observe(x, nil, 0)
	m.Observe(x, nil, 0.2)
	if want := math.Sqrt(0.04 / 2); math.Abs(m.Value()-want) > 1e-9 {
		t.Errorf("rms = %g, want %g", m.Value(), want)
	}
	if math.Abs(m.Max()-0.2) > 1e-9 {
		t.Errorf("max = %g, want 0.2", m.Max())
	}
}

func TestSolverMetrics(t *testing.T) {
	conv := NewConvergence()
	st := NewSolveTime()
	for i, d := range []solver.Diagnostics{
		{Converged: true, Elapsed: 2 * time.Millisecond},
		{Converged: false, Elapsed: 4 * time.Millisecond},
	} {
		tick := sim.Tick{Time: float64(i), Diagnostics: d}
		conv.OnTick(tick)
		st.OnTick(tick)
	}
	if conv.Value() != 0.5 {
		t.Errorf("convergence = %g, want 0.5", conv.Value())
	}
	if st.Value() != 3 || st.Max() != 4*time.Millisecond {
		t.Errorf("solve time = %g ms, max %v", st.Value(), st.Max())
	}
	conv.Reset()
	if conv.Value() != 0 {
		t.Error("expected zero ratio after reset")
	}
}

func TestContactAgreement(t *testing.T) {
	m := NewContactAgreement(1)
	m.OnTick(sim.Tick{
		Contacts: []bool{true, false, true, false},
		Forces:   []r3.Vector{{Z: 30}, {}, {Z: 0.5}, {Z: 20}},
	})
	if m.Value() != 0.5 {
		t.Errorf("agreement = %g, want 0.5", m.Value())
	}
}

func TestEstimatedContact(t *testing.T) {
	model := newModel(t)
	est, err := estimator.New(model, estimator.DefaultSettings(4))
	if err != nil {
		t.Fatal(err)
	}
	x := standing()
	q, _ := x.Split(18)
	u, _, err := ocp.StaticTorque(model, q, []bool{true, true, true, true})
	if err != nil {
		t.Fatal(err)
	}
	m := NewEstimatedContact(est, 18, func(float64) []bool { return []bool{true, true, true, true} }, 1e-3)
	for i := 0; i < 3; i++ {
		m.Observe(x, u, float64(i)*0.01)
	}
	if m.Value() != 1 {
		t.Errorf("agreement = %g, want 1", m.Value())
	}
	m.Reset()
	m.Observe(x, dynamo.Control(make([]float64, 12)), 0)
	m.Observe(x, dynamo.Control(make([]float64, 12)), 0.01)
	if m.Value() != 0 {
		t.Errorf("agreement without stance torques = %g, want 0", m.Value())
	}
}
