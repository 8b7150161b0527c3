// Package optim tunes gait and solver parameters by exhaustive search
// over closed-loop runs.
package optim

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// Evaluate scores one parameter assignment. Lower is better.
type Evaluate func(ctx context.Context, params map[string]float64) (float64, error)

// Point is one evaluated assignment.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

// NewGridSearch searches the cartesian product of ranges, ranges[i]
// being the values of params[i].
func NewGridSearch(params []string, ranges [][]float64, workers int) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, dynamo.Configf("%d parameters but %d ranges", len(params), len(ranges))
	}
	seen := make(map[string]bool, len(params))
	for i, name := range params {
		if seen[name] {
			return nil, dynamo.Configf("parameter %q listed twice", name)
		}
		seen[name] = true
		if len(ranges[i]) == 0 {
			return nil, dynamo.Configf("parameter %q has no values", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, workers: max(workers, 1)}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Points enumerates the grid, the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	points := make([]map[string]float64, 0, g.Size())
	g.enumerate(0, make(map[string]float64, len(g.paramNames)), &points)
	return points
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}
	for _, val := range g.ranges[depth] {
		current[g.paramNames[depth]] = val
		g.enumerate(depth+1, current, out)
	}
}

// Search evaluates every grid point and returns them in grid order with
// the index of the best one. A failed or non-finite evaluation is kept
// with its error and never wins; Search fails only if every point
// failed or ctx was cancelled.
func (g *GridSearch) Search(ctx context.Context, evaluate Evaluate) ([]Point, int, error) {
	params := g.Points()
	points := make([]Point, len(params))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, p := range params {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			v, err := evaluate(egCtx, p)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = fmt.Errorf("%w: objective %g", dynamo.ErrInvalidState, v)
			}
			points[i] = Point{Params: p, Value: v, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return points, -1, err
	}
	if err := ctx.Err(); err != nil {
		return points, -1, err
	}

	best := -1
	var errs error
	for i, p := range points {
		if p.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%v: %w", p.Params, p.Err))
			continue
		}
		if best < 0 || p.Value < points[best].Value {
			best = i
		}
	}
	if best < 0 {
		return points, -1, errs
	}
	return points, best, nil
}
