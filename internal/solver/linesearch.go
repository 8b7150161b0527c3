package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// merit is the summed evaluation of a trajectory.
type merit struct {
	cost      float64
	barrier   float64
	feasible  bool
	violation float64
	ok        bool
}

func (m merit) total() float64 { return m.cost + m.barrier }

func (m *merit) add(e Evaluation) {
	m.cost += e.Cost
	m.barrier += e.Barrier
	m.violation += e.Violation
	m.feasible = m.feasible && e.Feasible
}

// trajectory is a rollout buffer with per-knot evaluations.
type trajectory struct {
	x     []dynamo.State
	u     []dynamo.Control
	evals []Evaluation
	dx    *mat.VecDense
	du    *mat.VecDense
	alpha float64
	merit merit
}

func newTrajectory(nx, nu, capacity int) *trajectory {
	t := &trajectory{
		x:     make([]dynamo.State, capacity),
		u:     make([]dynamo.Control, capacity),
		evals: make([]Evaluation, capacity),
		dx:    mat.NewVecDense(nx, nil),
		du:    mat.NewVecDense(max(nu, 1), nil),
	}
	for i := range t.x {
		t.x[i] = make(dynamo.State, nx)
		t.u[i] = make(dynamo.Control, nu)
	}
	return t
}

// rollout simulates u_i = U_i + α·k_i + K_i(x_i - X_i) from the initial
// state of p. With k nil the feedforward term is dropped; with K nil the
// rollout is open loop. Knot costs are summed in knot order.
func (t *trajectory) rollout(p Problem, worker int, ref *Solution, k []*mat.VecDense, K []*mat.Dense,
	alpha, mu float64) {
	n := p.NumKnots()
	nu := p.DimU()
	t.alpha = alpha
	t.merit = merit{feasible: true, ok: true}
	copy(t.x[0], p.InitialState())
	for i := 0; i < n; i++ {
		var u dynamo.Control
		if i < n-1 {
			u = t.u[i]
			copy(u, ref.U[i])
			if k != nil {
				kv := k[i].RawVector()
				for j := 0; j < nu; j++ {
					u[j] += alpha * kv.Data[j*kv.Inc]
				}
			}
			if K != nil && K[i] != nil {
				for j := range t.dx.RawVector().Data {
					t.dx.SetVec(j, t.x[i][j]-ref.X[i][j])
				}
				t.du.MulVec(K[i], t.dx)
				for j := 0; j < nu; j++ {
					u[j] += t.du.AtVec(j)
				}
			}
		}
		var next dynamo.State
		if i < n-1 {
			next = t.x[i+1]
		}
		e, err := p.Stage(worker, i, t.x[i], u, mu, next)
		if err != nil || math.IsNaN(e.Cost) || math.IsInf(e.Cost, 0) || math.IsNaN(e.Barrier) {
			t.merit.ok = false
			return
		}
		t.evals[i] = e
		t.merit.add(e)
		if next != nil && !next.IsValid() {
			t.merit.ok = false
			return
		}
	}
	if math.IsInf(t.merit.total(), 0) || math.IsNaN(t.merit.total()) {
		t.merit.ok = false
	}
}

// accept applies the acceptance rule against the current merit: finite,
// sufficient decrease on cost plus barrier, and no loss of feasibility.
func (t *trajectory) accept(current merit, predicted, armijo float64) bool {
	if !t.merit.ok {
		return false
	}
	if current.feasible && !t.merit.feasible {
		return false
	}
	return t.merit.total() <= current.total()+armijo*math.Min(predicted, 0)
}

func (t *trajectory) store(sol *Solution, n int) {
	for i := 0; i < n; i++ {
		copy(sol.X[i], t.x[i])
		if i < n-1 {
			copy(sol.U[i], t.u[i])
		}
	}
}
