package ocp

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/constraint"
	"github.com/san-kum/legmpc/internal/cost"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/gait"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/solver"
	"github.com/san-kum/legmpc/internal/stage"
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

func standingQ() []float64 {
	q := []float64{0, 0, 0.3181, 0, 0, 0}
	for i := 0; i < 4; i++ {
		q = append(q, 0, 0.67, -1.3)
	}
	return q
}

func standingX() dynamo.State {
	return dynamo.NewState(standingQ(), make([]float64, 18))
}

func trot(t *testing.T, m robot.Model) *gait.Pattern {
	t.Helper()
	p, err := gait.NewTrottingPlanner(m)
	if err != nil {
		t.Fatal(err)
	}
	p.SetGaitPattern(r3.Vector{X: 0.15}, 0)
	if err := p.Reset(standingQ()); err != nil {
		t.Fatal(err)
	}
	pattern, err := p.Plan(0.25, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	return pattern
}

func newProblem(t *testing.T, m robot.Model, maxSteps int, opts ...Option) *OCP {
	t.Helper()
	nv, nu := m.DimV(), m.DimU()
	w := cost.ConfigurationWeights{
		QRef: standingQ(),
		Q:    fill(nv, 10),
		V:    fill(nv, 1),
		U:    fill(nu, 1e-2),
		QF:   fill(nv, 10),
		VF:   fill(nv, 1),
	}
	cfg, err := cost.NewConfiguration(m, w)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := constraint.NewSet(1e-3)
	if err != nil {
		t.Fatal(err)
	}
	fc, err := constraint.NewFrictionCone(0.7, constraint.DefaultFacets)
	if err != nil {
		t.Fatal(err)
	}
	cs.Add(fc)
	o, err := New(m, cost.NewFunction(cfg), cs, 0.5, 18, maxSteps, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNewValidatesArguments(t *testing.T) {
	m := newModel(t)
	cfg, _ := cost.NewConfiguration(m, cost.ConfigurationWeights{})
	f := cost.NewFunction(cfg)
	cs, _ := constraint.NewSet(1e-3)
	pattern := trot(t, m)

	tests := []struct {
		name     string
		T        float64
		n        int
		maxSteps int
		opts     []Option
	}{
		{"zero horizon", 0, 18, 3, nil},
		{"zero knots", 0.5, 0, 3, nil},
		{"negative max steps", 0.5, 18, -1, nil},
		{"max steps zero with gait", 0.5, 18, 0, []Option{WithContactSequence(pattern, 0)}},
		{"max steps too small", 0.5, 18, 1, []Option{WithContactSequence(pattern, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(m, f, cs, tt.T, tt.n, tt.maxSteps, tt.opts...)
			if !errors.Is(err, dynamo.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}

	if _, err := New(m, f, cs, 0.5, 18, 3, WithContactSequence(pattern, 0)); err != nil {
		t.Errorf("valid problem rejected: %v", err)
	}
}

func TestDiscretizeInsertsImpulseKnots(t *testing.T) {
	m := newModel(t)
	o := newProblem(t, m, 3, WithContactSequence(trot(t, m), 0.4))

	knots := o.Knots()
	if len(knots) != 19+2 {
		t.Fatalf("knots = %d, want 21", len(knots))
	}
	for i := 1; i < len(knots); i++ {
		if !(knots[i].Time > knots[i-1].Time) {
			t.Fatalf("knot times not increasing at %d: %v", i, o.KnotTimes())
		}
	}
	if last := knots[len(knots)-1]; last.Kind != stage.Terminal || math.Abs(last.Time-0.9) > 1e-12 {
		t.Errorf("last knot = %+v, want terminal at 0.9", last)
	}

	var impulses []Knot
	for _, k := range knots {
		if k.Kind == stage.Impulse {
			impulses = append(impulses, k)
		}
	}
	if len(impulses) != 2 {
		t.Fatalf("impulse knots = %d, want 2", len(impulses))
	}
	if math.Abs(impulses[0].Time-0.5) > 1e-12 || math.Abs(impulses[1].Time-0.75) > 1e-12 {
		t.Errorf("impulse times = %g, %g, want 0.5, 0.75", impulses[0].Time, impulses[1].Time)
	}
	// Lift-off at 0.5 carries no jump; RF and LH touch down at 0.75.
	if impulses[0].Jump {
		t.Error("lift-off knot should not jump")
	}
	if !impulses[1].Jump || !impulses[1].Touchdown[1] || !impulses[1].Touchdown[2] {
		t.Errorf("touchdown knot = %+v, want RL_foot and FR_foot touching down", impulses[1])
	}
	if impulses[0].Status.Active[2] || !impulses[0].Status.Active[0] {
		t.Errorf("status after lift = %v, want FR_foot in swing", impulses[0].Status.Active)
	}
}

func TestDiscretizeSnapsSwitchesOntoKnots(t *testing.T) {
	m := newModel(t)
	o := newProblem(t, m, 3, WithContactSequence(trot(t, m), 0.5))

	if got := o.NumKnots(); got != 19 {
		t.Fatalf("knots = %d, want 19", got)
	}
	kinds := o.KnotKinds()
	if kinds[0] != stage.Impulse || kinds[9] != stage.Impulse {
		t.Errorf("kinds = %v, want impulse knots at 0 and 9", kinds)
	}
	if kinds[18] != stage.Terminal {
		t.Errorf("last kind = %v, want terminal", kinds[18])
	}
}

func TestStandingFallbackAnchorsAtInitialFeet(t *testing.T) {
	m := newModel(t)
	o := newProblem(t, m, 0)
	if err := o.Discretize(0); err != nil {
		t.Fatal(err)
	}
	if err := o.SetInitialState(standingX()); err != nil {
		t.Fatal(err)
	}
	m.ForwardKinematics(standingQ())
	for _, k := range o.Knots() {
		if k.Kind == stage.Impulse {
			t.Fatalf("standing problem has impulse knot at %g", k.Time)
		}
		for c, id := range m.ContactFrames() {
			if !k.Status.Active[c] || k.Status.Anchors[c] != m.FramePosition(id) {
				t.Fatalf("knot %g contact %d = %v at %v", k.Time, c, k.Status.Active[c], k.Status.Anchors[c])
			}
		}
	}

	if err := o.SetInitialState(dynamo.State{1, 2}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("short state err = %v, want ErrDimensionMismatch", err)
	}
}

func TestStaticTorqueHoldsStance(t *testing.T) {
	m := newModel(t)
	q := standingQ()
	active := []bool{true, true, true, true}
	u, forces, err := StaticTorque(m, q, active)
	if err != nil {
		t.Fatal(err)
	}
	total := 0.0
	for _, f := range forces {
		total += f.Z
	}
	if math.Abs(total-12*9.81) > 1e-6 {
		t.Errorf("vertical force = %g, want %g", total, 12*9.81)
	}

	dyn := NewContactDynamics(m)
	status := stage.NewContactStatus(4)
	m.ForwardKinematics(q)
	for c, id := range m.ContactFrames() {
		status.Active[c] = true
		status.Anchors[c] = m.FramePosition(id)
	}
	dyn.SetContactStatus(status)
	a := make([]float64, 18)
	if err := dyn.Acceleration(standingX(), u, 0, a); err != nil {
		t.Fatal(err)
	}
	for i, x := range a {
		if math.Abs(x) > 1e-6 {
			t.Errorf("a[%d] = %g, want 0", i, x)
		}
	}
}

func TestStaticTorqueOnDiagonalPair(t *testing.T) {
	m := newModel(t)
	for _, active := range [][]bool{{false, true, true, false}, {true, false, false, true}} {
		u, forces, err := StaticTorque(m, standingQ(), active)
		if err != nil {
			t.Fatalf("%v: %v", active, err)
		}
		if !dynamo.State(u).IsValid() {
			t.Fatalf("%v: torque %v", active, u)
		}
		total := 0.0
		for c, f := range forces {
			if !active[c] && f.Norm() != 0 {
				t.Errorf("%v: swing contact %d carries %v", active, c, f)
			}
			total += f.Z
		}
		if math.Abs(total-12*9.81) > 1e-6 {
			t.Errorf("%v: vertical force = %g, want %g", active, total, 12*9.81)
		}
	}
}

func TestImpulseStopsContacts(t *testing.T) {
	m := newModel(t)
	q := standingQ()
	v := make([]float64, 18)
	v[0], v[2], v[4], v[7] = 0.3, -0.5, 0.2, 1.1
	active := []bool{false, true, true, false}

	dyn := NewContactDynamics(m)
	dv := make([]float64, 18)
	if err := dyn.Impulse(q, v, active, dv); err != nil {
		t.Fatal(err)
	}
	m.ForwardKinematics(q)
	jac := mat.NewDense(3, 18, nil)
	post := make([]float64, 18)
	for i := range post {
		post[i] = v[i] + dv[i]
	}
	for c, id := range m.ContactFrames() {
		if !active[c] {
			continue
		}
		m.FrameJacobian(id, jac)
		var jv mat.VecDense
		jv.MulVec(jac, mat.NewVecDense(18, post))
		if n := mat.Norm(&jv, 2); n > 1e-8 {
			t.Errorf("contact %d speed after impulse = %g, want 0", c, n)
		}
	}
}

func TestStageAndLinearizeAgree(t *testing.T) {
	m := newModel(t)
	o := newProblem(t, m, 3, WithContactSequence(trot(t, m), 0.4))
	x0 := standingX()
	if err := o.SetInitialState(x0); err != nil {
		t.Fatal(err)
	}
	xs, us, err := o.StaticGuess(x0)
	if err != nil {
		t.Fatal(err)
	}
	if len(xs) != o.NumKnots() || len(us) != o.NumKnots()-1 {
		t.Fatalf("guess sizes = %d, %d", len(xs), len(us))
	}

	next := make(dynamo.State, o.DimX())
	nextP := make(dynamo.State, o.DimX())
	xp := make(dynamo.State, o.DimX())
	lq := solver.NewLQ(o.DimX(), o.DimU())
	for i := range us {
		ev, err := o.Stage(0, i, xs[i], us[i], 1e-3, next)
		if err != nil {
			t.Fatalf("stage %d: %v", i, err)
		}
		lev, err := o.Linearize(0, i, xs[i], us[i], 1e-3, lq)
		if err != nil {
			t.Fatalf("linearize %d: %v", i, err)
		}
		if math.Abs(ev.Cost-lev.Cost) > 1e-12 || math.Abs(ev.Barrier-lev.Barrier) > 1e-12 {
			t.Errorf("knot %d: stage %+v != linearize %+v", i, ev, lev)
		}
		const j, h = 8, 1e-5
		copy(xp, xs[i])
		xp[j] += h
		if _, err := o.Stage(0, i, xp, us[i], 1e-3, nextP); err != nil {
			t.Fatal(err)
		}
		for r := range next {
			fd := (nextP[r] - next[r]) / h
			if math.Abs(fd-lq.A.At(r, j)) > 1e-3*math.Max(1, math.Abs(fd)) {
				t.Errorf("knot %d: A[%d][%d] = %g, finite difference %g", i, r, j, lq.A.At(r, j), fd)
			}
		}
	}
	if _, err := o.Stage(0, o.NumKnots()-1, xs[len(xs)-1], nil, 1e-3, next); err != nil {
		t.Errorf("terminal stage: %v", err)
	}
}

func TestPlantHoldsStance(t *testing.T) {
	m := newModel(t)
	plant := NewPlant(m, nil, 0.7)
	active := []bool{true, true, true, true}
	u, _, err := StaticTorque(m, standingQ(), active)
	if err != nil {
		t.Fatal(err)
	}
	x := standingX()
	next := make(dynamo.State, len(x))
	for k := 0; k < 200; k++ {
		if err := plant.Step(x, u, float64(k)*0.005, 0.005, active, next); err != nil {
			t.Fatal(err)
		}
		x, next = next, x
	}
	if dz := math.Abs(x[2] - 0.3181); dz > 1e-4 {
		t.Errorf("base height drifted by %g", dz)
	}
	for _, f := range plant.Forces() {
		if f.Z <= 0 {
			t.Errorf("contact force %v should push up", f)
		}
	}
}
