package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// Job is one closed-loop run of an ensemble. Every job needs its own
// simulator, controller and plant.
type Job struct {
	Name string
	Sim  *Simulator
	X0   dynamo.State
	T0   float64
	Cfg  Config
}

// Ensemble runs independent jobs concurrently, at most limit at a time.
type Ensemble struct {
	limit int
}

func NewEnsemble(limit int) *Ensemble {
	return &Ensemble{limit: max(1, limit)}
}

// Run returns the results in job order. The first failing job cancels
// the others.
func (e *Ensemble) Run(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i := range jobs {
		job := jobs[i]
		idx := i
		g.Go(func() error {
			res, err := job.Sim.Run(ctx, job.X0, job.T0, job.Cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Name, err)
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
