package integrators

import "github.com/san-kum/legmpc/internal/dynamo"

type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
	a              []float64
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) ensureScratch(n, nv int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
	if len(r.a) != nv {
		r.a = make([]float64, nv)
	}
}

// derive writes [v; a] at x into k.
func (r *RK4) derive(sys SecondOrder, x dynamo.State, u dynamo.Control, t float64, k dynamo.State) error {
	nq := sys.DimQ()
	if err := sys.Acceleration(x, u, t, r.a); err != nil {
		return err
	}
	copy(k[:nq], x[nq:])
	copy(k[nq:], r.a)
	return nil
}

func (r *RK4) Step(sys SecondOrder, x dynamo.State, u dynamo.Control, t, dt float64, next dynamo.State) error {
	n := len(x)
	r.ensureScratch(n, n-sys.DimQ())

	if err := r.derive(sys, x, u, t, r.k1); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	if err := r.derive(sys, r.scratch, u, t+dt*0.5, r.k2); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	if err := r.derive(sys, r.scratch, u, t+dt*0.5, r.k3); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	if err := r.derive(sys, r.scratch, u, t+dt, r.k4); err != nil {
		return err
	}

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		next[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return nil
}
