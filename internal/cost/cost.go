// Package cost aggregates weighted quadratic tracking terms into the
// stage cost of the optimal control problem. Running terms are scaled by
// the knot's segment length, terminal and impulse terms are not.
package cost

import (
	"github.com/san-kum/legmpc/internal/reference"
	"github.com/san-kum/legmpc/internal/stage"
)

// Term is one weighted cost contribution at a knot.
type Term interface {
	Name() string
	Evaluate(d *stage.Data) float64
	// Linearize adds the gradient and Gauss-Newton Hessian of the term to
	// q and returns the term value.
	Linearize(d *stage.Data, q *stage.Quadratic) float64
}

// TrackBinder is implemented by terms whose target follows the reference
// generator of the current gait.
type TrackBinder interface {
	BindTracks(g *reference.Generator)
}

// Function is an append-only ordered collection of terms. Terms are
// evaluated in insertion order.
type Function struct {
	terms []Term
}

func NewFunction(terms ...Term) *Function {
	f := &Function{}
	for _, t := range terms {
		f.Add(t)
	}
	return f
}

func (f *Function) Add(t Term) {
	f.terms = append(f.terms, t)
}

func (f *Function) Terms() []Term { return f.terms }

func (f *Function) Evaluate(d *stage.Data) float64 {
	sum := 0.0
	for _, t := range f.terms {
		sum += t.Evaluate(d)
	}
	return sum
}

func (f *Function) Linearize(d *stage.Data, q *stage.Quadratic) float64 {
	sum := 0.0
	for _, t := range f.terms {
		sum += t.Linearize(d, q)
	}
	return sum
}

// BindTracks points every TrackBinder term at the tracks of g.
func (f *Function) BindTracks(g *reference.Generator) {
	for _, t := range f.terms {
		if b, ok := t.(TrackBinder); ok {
			b.BindTracks(g)
		}
	}
}
