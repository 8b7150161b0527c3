package control

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/mpc"
)

type Feedback struct {
	U     dynamo.Control
	K     *mat.Dense
	X     dynamo.State
	Limit []float64

	dx        *mat.VecDense
	du        mat.VecDense
	saturated bool
}

// NewFeedback builds the law of cmd. limit holds the torque magnitude
// bound per control and may be nil.
func NewFeedback(cmd mpc.Command, limit []float64) *Feedback {
	return &Feedback{
		U:     cmd.U,
		K:     cmd.K,
		X:     cmd.X,
		Limit: limit,
		dx:    mat.NewVecDense(max(len(cmd.X), 1), nil),
	}
}

func (f *Feedback) Compute(x dynamo.State, t float64) dynamo.Control {
	u := f.U.Clone()
	if f.K != nil && len(x) == len(f.X) && len(u) > 0 {
		for i := range x {
			f.dx.SetVec(i, x[i]-f.X[i])
		}
		f.du.MulVec(f.K, f.dx)
		for i := range u {
			u[i] += f.du.AtVec(i)
		}
	}
	f.saturated = false
	for i := range u {
		if i >= len(f.Limit) {
			break
		}
		if lim := f.Limit[i]; math.Abs(u[i]) > lim {
			u[i] = math.Copysign(lim, u[i])
			f.saturated = true
		}
	}
	return u
}

// Saturated reports whether the last Compute clipped any torque.
func (f *Feedback) Saturated() bool { return f.saturated }
