// Package constraint holds the inequality constraints of the optimal
// control problem and their interior-point barrier. Every row is written
// as g(x, u) <= 0.
package constraint

import (
	"math"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/stage"
)

// DefaultRelaxation is the slack below which the barrier turns quadratic.
const DefaultRelaxation = 1e-3

// Constraint is a family of inequality rows evaluated at a knot.
type Constraint interface {
	Name() string
	// Values appends g for every row at d.
	Values(d *stage.Data, dst []float64) []float64
	// Linearize adds the barrier gradient and Gauss-Newton Hessian of
	// every row to q and returns the barrier value.
	Linearize(d *stage.Data, b Barrier, q *stage.Quadratic) float64
}

// Set is an append-only ordered collection of constraints sharing one
// barrier coefficient. Terminal knots carry no rows.
type Set struct {
	constraints []Constraint
	barrier     float64
	relaxation  float64
}

type Option func(*Set)

func WithRelaxation(delta float64) Option {
	return func(s *Set) { s.relaxation = delta }
}

func NewSet(barrier float64, opts ...Option) (*Set, error) {
	s := &Set{barrier: barrier, relaxation: DefaultRelaxation}
	for _, opt := range opts {
		opt(s)
	}
	if !(barrier > 0) {
		return nil, dynamo.Configf("barrier must be positive, got %g", barrier)
	}
	if !(s.relaxation > 0) {
		return nil, dynamo.Configf("barrier relaxation must be positive, got %g", s.relaxation)
	}
	return s, nil
}

func (s *Set) Add(c Constraint) {
	s.constraints = append(s.constraints, c)
}

func (s *Set) Constraints() []Constraint { return s.constraints }

func (s *Set) Barrier() float64 { return s.barrier }

// SetBarrier changes the barrier coefficient used by later evaluations.
func (s *Set) SetBarrier(mu float64) { s.barrier = mu }

func (s *Set) barrierAt(mu float64) Barrier {
	return Barrier{Mu: mu, Delta: s.relaxation}
}

// FrictionCoefficient is the coefficient of the first friction cone, or
// zero when the set has none.
func (s *Set) FrictionCoefficient() float64 {
	for _, c := range s.constraints {
		if fc, ok := c.(*FrictionCone); ok {
			return fc.Mu()
		}
	}
	return 0
}

// Values returns every row value at d, in constraint order.
func (s *Set) Values(d *stage.Data) []float64 {
	if d.Kind == stage.Terminal {
		return nil
	}
	var out []float64
	for _, c := range s.constraints {
		out = c.Values(d, out)
	}
	return out
}

func (s *Set) BarrierValue(d *stage.Data) float64 {
	return s.BarrierValueAt(d, s.barrier)
}

// BarrierValueAt evaluates the barrier with coefficient mu.
func (s *Set) BarrierValueAt(d *stage.Data, mu float64) float64 {
	b := s.barrierAt(mu)
	sum := 0.0
	for _, g := range s.Values(d) {
		sum += b.Value(g)
	}
	return sum
}

func (s *Set) BarrierGradient(d *stage.Data, q *stage.Quadratic) float64 {
	return s.BarrierGradientAt(d, s.barrier, q)
}

// BarrierGradientAt is BarrierGradient with coefficient mu.
func (s *Set) BarrierGradientAt(d *stage.Data, mu float64, q *stage.Quadratic) float64 {
	if d.Kind == stage.Terminal {
		return 0
	}
	b := s.barrierAt(mu)
	sum := 0.0
	for _, c := range s.constraints {
		sum += c.Linearize(d, b, q)
	}
	return sum
}

// Feasible reports whether every row is strictly satisfied.
func (s *Set) Feasible(d *stage.Data) bool {
	for _, g := range s.Values(d) {
		if !(g < 0) {
			return false
		}
	}
	return true
}

// Violation is the summed positive part of all rows.
func (s *Set) Violation(d *stage.Data) float64 {
	sum := 0.0
	for _, g := range s.Values(d) {
		if g > 0 {
			sum += g
		} else if math.IsNaN(g) {
			return math.Inf(1)
		}
	}
	return sum
}

// Assess returns the barrier value with coefficient mu, whether every row
// is strictly satisfied and the summed violation, in one pass.
func (s *Set) Assess(d *stage.Data, mu float64) (barrier float64, feasible bool, violation float64) {
	b := s.barrierAt(mu)
	feasible = true
	for _, g := range s.Values(d) {
		barrier += b.Value(g)
		switch {
		case math.IsNaN(g):
			feasible = false
			violation = math.Inf(1)
		case g >= 0:
			feasible = false
			violation += g
		}
	}
	return barrier, feasible, violation
}
