package integrators

import "github.com/san-kum/legmpc/internal/dynamo"

// SemiImplicitEuler updates the velocity first and integrates the
// configuration with the new velocity:
//
//	v+ = v + dt*a(q, v, u)
//	q+ = q + dt*v+
type SemiImplicitEuler struct {
	a []float64
}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (e *SemiImplicitEuler) Name() string { return "semi-implicit-euler" }

func (e *SemiImplicitEuler) Step(sys SecondOrder, x dynamo.State, u dynamo.Control, t, dt float64, next dynamo.State) error {
	nq := sys.DimQ()
	nv := len(x) - nq
	if len(e.a) != nv {
		e.a = make([]float64, nv)
	}
	if err := sys.Acceleration(x, u, t, e.a); err != nil {
		return err
	}
	for i := 0; i < nv; i++ {
		next[nq+i] = x[nq+i] + dt*e.a[i]
	}
	for i := 0; i < nq; i++ {
		next[i] = x[i] + dt*next[nq+i]
	}
	return nil
}

// Euler is the explicit forward Euler scheme.
type Euler struct {
	a []float64
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(sys SecondOrder, x dynamo.State, u dynamo.Control, t, dt float64, next dynamo.State) error {
	nq := sys.DimQ()
	nv := len(x) - nq
	if len(e.a) != nv {
		e.a = make([]float64, nv)
	}
	if err := sys.Acceleration(x, u, t, e.a); err != nil {
		return err
	}
	for i := 0; i < nq; i++ {
		next[i] = x[i] + dt*x[nq+i]
	}
	for i := 0; i < nv; i++ {
		next[nq+i] = x[nq+i] + dt*e.a[i]
	}
	return nil
}
