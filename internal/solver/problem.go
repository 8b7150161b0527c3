package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/stage"
)

// Evaluation is the merit contribution of one knot.
type Evaluation struct {
	Cost      float64
	Barrier   float64
	Feasible  bool
	Violation float64
}

// LQ is the linear-quadratic model of one knot: next-state Jacobians A,
// B and the quadratic model of cost plus barrier.
type LQ struct {
	A *mat.Dense
	B *mat.Dense
	Q *stage.Quadratic
}

func NewLQ(nx, nu int) *LQ {
	return &LQ{
		A: mat.NewDense(nx, nx, nil),
		B: mat.NewDense(nx, max(nu, 1), nil),
		Q: stage.NewQuadratic(nx, nu),
	}
}

// Problem is a discretized optimal control problem over knots
// 0..NumKnots()-1; the last knot is terminal and has no control. Calls
// with distinct worker indices may run concurrently; Prepare reserves the
// per-worker state.
type Problem interface {
	DimX() int
	DimU() int
	NumKnots() int
	Capacity() int
	KnotTime(i int) float64
	KnotKind(i int) stage.Kind
	InitialState() dynamo.State
	Prepare(workers int)

	// Stage evaluates knot i at (x, u) with barrier coefficient mu and,
	// for non-terminal knots, writes the next knot state into next.
	Stage(worker, i int, x dynamo.State, u dynamo.Control, mu float64, next dynamo.State) (Evaluation, error)
	// Linearize builds the LQ model of knot i around (x, u).
	Linearize(worker, i int, x dynamo.State, u dynamo.Control, mu float64, lq *LQ) (Evaluation, error)
}
