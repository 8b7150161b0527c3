package solver

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/stage"
)

// Diagnostics summarize one Solve call.
type Diagnostics struct {
	Iterations     int
	KKTError       float64
	Cost           float64
	Merit          float64
	Converged      bool
	Feasible       bool
	Barrier        float64
	StepSize       float64
	Regularization float64
	// Failure is set when the solve stopped without a usable step, for
	// instance on a persistent Riccati factorization failure.
	Failure string
	Elapsed time.Duration
}

func (d Diagnostics) String() string {
	s := fmt.Sprintf("iter=%d kkt=%.3e cost=%.4f mu=%.1e step=%.3f rho=%.1e converged=%v (%v)",
		d.Iterations, d.KKTError, d.Cost, d.Barrier, d.StepSize, d.Regularization, d.Converged, d.Elapsed)
	if d.Failure != "" {
		s += " failure: " + d.Failure
	}
	return s
}

// Solution is a trajectory over the knots of a problem. X has one state
// per knot; U and K have one entry per non-terminal knot. K maps state
// deviations to control corrections, u = U + K(x - X). Lambda holds the
// costates of the last linearization.
type Solution struct {
	Times  []float64
	Kinds  []stage.Kind
	X      []dynamo.State
	U      []dynamo.Control
	K      []*mat.Dense
	Lambda []dynamo.State

	// Barrier is the barrier coefficient reached by the last solve.
	Barrier     float64
	Diagnostics Diagnostics
}

// NewSolution holds x0 at the given knots with zero controls.
func NewSolution(times []float64, kinds []stage.Kind, x0 dynamo.State, nu int) *Solution {
	n := len(times)
	s := &Solution{
		Times: append([]float64(nil), times...),
		Kinds: append([]stage.Kind(nil), kinds...),
		X:     make([]dynamo.State, n),
	}
	for i := range s.X {
		s.X[i] = x0.Clone()
	}
	if n > 1 {
		s.U = make([]dynamo.Control, n-1)
		for i := range s.U {
			s.U[i] = make(dynamo.Control, nu)
		}
	}
	return s
}

func (s *Solution) Len() int { return len(s.X) }

func (s *Solution) Clone() *Solution {
	if s == nil {
		return nil
	}
	c := &Solution{
		Times:       append([]float64(nil), s.Times...),
		Kinds:       append([]stage.Kind(nil), s.Kinds...),
		X:           make([]dynamo.State, len(s.X)),
		U:           make([]dynamo.Control, len(s.U)),
		K:           make([]*mat.Dense, len(s.K)),
		Lambda:      make([]dynamo.State, len(s.Lambda)),
		Barrier:     s.Barrier,
		Diagnostics: s.Diagnostics,
	}
	for i, x := range s.X {
		c.X[i] = x.Clone()
	}
	for i, u := range s.U {
		c.U[i] = u.Clone()
	}
	for i, k := range s.K {
		if k != nil {
			c.K[i] = mat.DenseCopyOf(k)
		}
	}
	for i, l := range s.Lambda {
		c.Lambda[i] = l.Clone()
	}
	return c
}

// segment returns the index of the knot whose segment covers t, clamped
// to the non-terminal knots.
func (s *Solution) segment(t float64) int {
	i := sort.SearchFloat64s(s.Times, t)
	if i < len(s.Times) && s.Times[i] == t {
		return min(i, len(s.Times)-2)
	}
	return max(0, min(i-1, len(s.Times)-2))
}

// StateAt interpolates the state trajectory linearly, holding the end
// states outside the knot span.
func (s *Solution) StateAt(t float64) dynamo.State {
	n := len(s.Times)
	switch {
	case n == 0:
		return nil
	case n == 1 || t <= s.Times[0]:
		return s.X[0].Clone()
	case t >= s.Times[n-1]:
		return s.X[n-1].Clone()
	}
	i := s.segment(t)
	w := (t - s.Times[i]) / (s.Times[i+1] - s.Times[i])
	return dynamo.Lerp(s.X[i], s.X[i+1], w)
}

// ControlAt holds the control of the segment that covers t.
func (s *Solution) ControlAt(t float64) dynamo.Control {
	if len(s.U) == 0 {
		return nil
	}
	return s.U[s.segment(t)]
}

// GainAt holds the feedback gain of the segment that covers t.
func (s *Solution) GainAt(t float64) *mat.Dense {
	if len(s.K) == 0 {
		return nil
	}
	return s.K[min(s.segment(t), len(s.K)-1)]
}

// Interpolate resamples the solution onto a new knot grid for warm
// starting the next horizon: states and costates linearly, controls and
// gains by zero-order hold.
func (s *Solution) Interpolate(times []float64, kinds []stage.Kind) *Solution {
	n := len(times)
	out := &Solution{
		Times:       append([]float64(nil), times...),
		Kinds:       append([]stage.Kind(nil), kinds...),
		X:           make([]dynamo.State, n),
		Barrier:     s.Barrier,
		Diagnostics: s.Diagnostics,
	}
	for i, t := range times {
		out.X[i] = s.StateAt(t)
	}
	if len(s.Lambda) == len(s.Times) && len(s.Lambda) > 0 {
		lam := &Solution{Times: s.Times, X: s.Lambda}
		out.Lambda = make([]dynamo.State, n)
		for i, t := range times {
			out.Lambda[i] = lam.StateAt(t)
		}
	}
	if n > 1 && len(s.U) > 0 {
		out.U = make([]dynamo.Control, n-1)
		for i := range out.U {
			out.U[i] = s.ControlAt(times[i]).Clone()
		}
		if len(s.K) > 0 {
			out.K = make([]*mat.Dense, n-1)
			for i := range out.K {
				if k := s.GainAt(times[i]); k != nil {
					out.K[i] = mat.DenseCopyOf(k)
				}
			}
		}
	}
	return out
}
