package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// oscillator is a unit harmonic oscillator driven by u.
type oscillator struct{}

func (oscillator) DimQ() int { return 1 }

func (oscillator) Acceleration(x dynamo.State, u dynamo.Control, t float64, a []float64) error {
	a[0] = -x[0]
	if len(u) > 0 {
		a[0] += u[0]
	}
	return nil
}

type failing struct{}

func (failing) DimQ() int { return 1 }

func (failing) Acceleration(dynamo.State, dynamo.Control, float64, []float64) error {
	return dynamo.ErrSingular
}

func integrate(t *testing.T, integ Integrator, dt float64, steps int) dynamo.State {
	t.Helper()
	x := dynamo.State{1.0, 0.0}
	next := make(dynamo.State, 2)
	for i := 0; i < steps; i++ {
		if err := integ.Step(oscillator{}, x, nil, float64(i)*dt, dt, next); err != nil {
			t.Fatal(err)
		}
		x, next = next, x
	}
	return x
}

func TestRK4Accuracy(t *testing.T) {
	dt := 0.01
	steps := 100
	x := integrate(t, NewRK4(), dt, steps)

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestSemiImplicitEulerBoundedEnergy(t *testing.T) {
	energy := func(x dynamo.State) float64 { return 0.5 * (x[0]*x[0] + x[1]*x[1]) }
	semi := integrate(t, NewSemiImplicitEuler(), 0.02, 5000)
	explicit := integrate(t, NewEuler(), 0.02, 5000)

	if e := energy(semi); math.Abs(e-0.5) > 0.02 {
		t.Errorf("semi-implicit Euler energy drifted to %.4f", e)
	}
	if energy(explicit) <= energy(semi) {
		t.Error("explicit Euler should gain energy on an oscillator")
	}
}

func TestSemiImplicitEulerUsesUpdatedVelocity(t *testing.T) {
	next := make(dynamo.State, 2)
	if err := NewSemiImplicitEuler().Step(oscillator{}, dynamo.State{0, 0}, dynamo.Control{1}, 0, 0.1, next); err != nil {
		t.Fatal(err)
	}
	if math.Abs(next[1]-0.1) > 1e-15 || math.Abs(next[0]-0.01) > 1e-15 {
		t.Errorf("step = %v, want [0.01 0.1]", next)
	}
}

func TestIntegratorErrorsPropagate(t *testing.T) {
	for _, name := range Names() {
		integ, err := New(name)
		if err != nil {
			t.Fatal(err)
		}
		err = integ.Step(failing{}, dynamo.State{0, 0}, nil, 0, 0.01, make(dynamo.State, 2))
		if !errors.Is(err, dynamo.ErrSingular) {
			t.Errorf("%s swallowed the acceleration error: %v", name, err)
		}
	}
	if _, err := New("verlet"); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("unknown integrator: %v", err)
	}
}
