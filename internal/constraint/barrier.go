package constraint

import "math"

// Barrier is the relaxed log barrier of a row g <= 0 with slack s = -g.
// For s > Delta it is -Mu*log(s); below Delta it continues as the
// quadratic with matching value, slope and curvature, so infeasible
// iterates are penalized instead of rejected.
type Barrier struct {
	Mu    float64
	Delta float64
}

func (b Barrier) Value(g float64) float64 {
	s := -g
	if s > b.Delta {
		return -b.Mu * math.Log(s)
	}
	r := (s - 2*b.Delta) / b.Delta
	return b.Mu * (0.5*r*r - 0.5 - math.Log(b.Delta))
}

// Derivatives returns the first and second derivative of the barrier
// with respect to g.
func (b Barrier) Derivatives(g float64) (d1, d2 float64) {
	s := -g
	if s > b.Delta {
		return b.Mu / s, b.Mu / (s * s)
	}
	dd := b.Delta * b.Delta
	return -b.Mu * (s - 2*b.Delta) / dd, b.Mu / dd
}
