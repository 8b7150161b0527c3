package reference

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/gait"
	"github.com/san-kum/legmpc/internal/robot"
)

func standing() []float64 {
	q := []float64{0, 0, 0.3181, 0, 0, 0}
	for i := 0; i < 4; i++ {
		q = append(q, 0, 0.67, -1.3)
	}
	return q
}

func newGenerator(t *testing.T, step r3.Vector, firstHalf bool) *Generator {
	t.Helper()
	m, err := robot.Load("", robot.FloatingBase,
		[]string{"FL_foot", "RL_foot", "FR_foot", "RR_foot"}, make([]robot.ContactType, 4), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	planner, err := gait.NewTrottingPlanner(m)
	if err != nil {
		t.Fatal(err)
	}
	planner.SetGaitPattern(step, 0)
	planner.SetFirstStepHalf(firstHalf)
	if err := planner.Reset(standing()); err != nil {
		t.Fatal(err)
	}
	pat, err := planner.Plan(0.25, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	gen, err := NewGenerator(pat, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	return gen
}

func TestRebasedTracksStartAtMeasurement(t *testing.T) {
	plain := newGenerator(t, r3.Vector{X: 0.15}, false).Pattern()
	gen, err := NewGenerator(plain.Rebase(1.6), 0.1)
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < plain.NumContacts(); c++ {
		if d := gen.Foot(c).Position(1.6).Sub(plain.InitialFoothold(c)).Norm(); d > 1e-12 {
			t.Errorf("contact %d reference is %v from the measured foot", c, d)
		}
	}
	if d := gen.CoM().Position(1.6).Sub(plain.InitialCoM()).Norm(); d > 1e-12 {
		t.Errorf("CoM reference is %v from the measured CoM", d)
	}
}

func TestFrontRightSwingMidpoint(t *testing.T) {
	gen := newGenerator(t, r3.Vector{X: 0.15}, false)
	const rf = 2
	start := gen.Foot(rf).Position(0.0)
	mid := gen.Foot(rf).Position(0.625)

	d := mid.Sub(start)
	if math.Abs(d.X-0.075) > 1e-12 || math.Abs(d.Y) > 1e-12 {
		t.Errorf("horizontal displacement = (%v, %v), want (0.075, 0)", d.X, d.Y)
	}
	if math.Abs(d.Z-0.1) > 1e-12 {
		t.Errorf("height above start = %v, want 0.1", d.Z)
	}
}

func TestFootTrackStanceAndLanding(t *testing.T) {
	gen := newGenerator(t, r3.Vector{X: 0.15}, false)
	const rf, lf = 2, 0
	p0 := gen.Foot(rf).Position(0)

	tests := []struct {
		name    string
		contact int
		t       float64
		want    r3.Vector
	}{
		{"RF before lift", rf, 0.49, p0},
		{"RF at touchdown", rf, 0.75, p0.Add(r3.Vector{X: 0.15})},
		{"RF second stance", rf, 0.9, p0.Add(r3.Vector{X: 0.15})},
		{"RF second landing", rf, 1.25, p0.Add(r3.Vector{X: 0.3})},
		{"LF still standing", lf, 0.7, gen.Foot(lf).Position(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gen.Foot(tt.contact).Position(tt.t)
			if got.Sub(tt.want).Norm() > 1e-12 {
				t.Errorf("position = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTentProfile(t *testing.T) {
	if tent(0, 0.25, 0.1) != 0 {
		t.Error("tent must start on the ground")
	}
	if math.Abs(tent(0.0625, 0.25, 0.1)-0.05) > 1e-12 {
		t.Error("tent must rise linearly")
	}
	if math.Abs(tent(0.25, 0.25, 0.1)) > 1e-12 {
		t.Error("tent must land on the ground")
	}
}

func TestFirstStepHalf(t *testing.T) {
	gen := newGenerator(t, r3.Vector{X: 0.15}, true)
	const rf, lf = 2, 0
	d := gen.Foot(rf).Position(0.75).Sub(gen.Foot(rf).Position(0))
	if math.Abs(d.X-0.075) > 1e-12 {
		t.Errorf("first RF step = %v, want 0.075", d.X)
	}
	d = gen.Foot(lf).Position(1.0).Sub(gen.Foot(lf).Position(0))
	if math.Abs(d.X-0.15) > 1e-12 {
		t.Errorf("first LF step = %v, want 0.15", d.X)
	}
}

func TestCoMTrack(t *testing.T) {
	gen := newGenerator(t, r3.Vector{X: 0.15}, false)
	c0 := gen.CoM().Position(0)
	if math.Abs(c0.Z-0.3181) > 1e-12 {
		t.Errorf("initial CoM height = %v", c0.Z)
	}
	if d := gen.CoM().Position(0.75).Sub(c0); math.Abs(d.X-0.0375) > 1e-12 {
		t.Errorf("CoM travel after first swing = %v, want 0.0375", d.X)
	}
}

func TestNewGeneratorErrors(t *testing.T) {
	if _, err := NewGenerator(nil, 0.1); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("nil pattern: %v", err)
	}
	gen := newGenerator(t, r3.Vector{}, false)
	if _, err := NewGenerator(gen.Pattern(), -1); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("negative height: %v", err)
	}
}

func TestFixedAndFunc(t *testing.T) {
	p := r3.Vector{X: 1, Y: 2, Z: 3}
	if Fixed(p).Position(10) != p {
		t.Error("fixed track moved")
	}
	f := Func(func(t float64) r3.Vector { return r3.Vector{X: t} })
	if f.Position(2).X != 2 {
		t.Error("func track ignored time")
	}
}
