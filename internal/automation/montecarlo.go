package automation

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/experiment"
	"github.com/san-kum/legmpc/internal/sim"
)

// MonteCarloConfig perturbs the standing state of Config with zero-mean
// normal noise on the base height, roll and pitch, and the base linear
// velocity.
type MonteCarloConfig struct {
	Config     *config.Config
	Controller string
	Trials     int
	Seed       uint64
	Workers    int

	HeightSigma   float64
	TiltSigma     float64
	VelocitySigma float64

	// MinHeight is the lowest final base height of a stable trial.
	MinHeight float64
}

func (c *MonteCarloConfig) Validate() error {
	var err error
	if c.Config == nil {
		err = multierr.Append(err, dynamo.Configf("monte carlo needs a base config"))
	}
	if c.Trials <= 0 {
		err = multierr.Append(err, dynamo.Configf("trials must be positive, got %d", c.Trials))
	}
	if c.Workers <= 0 {
		err = multierr.Append(err, dynamo.Configf("workers must be positive, got %d", c.Workers))
	}
	for _, s := range []struct {
		name string
		v    float64
	}{{"height_sigma", c.HeightSigma}, {"tilt_sigma", c.TiltSigma}, {"velocity_sigma", c.VelocitySigma}} {
		if s.v < 0 {
			err = multierr.Append(err, dynamo.Configf("%s must be non-negative, got %g", s.name, s.v))
		}
	}
	return err
}

type MonteCarloResult struct {
	TrialID    int
	InitState  dynamo.State
	FinalState dynamo.State
	// Stable trials ran to the end with a finite state above MinHeight.
	Stable  bool
	Metrics map[string]float64
}

// perturb draws the initial states of all trials from one seeded
// source so a seed reproduces the batch regardless of scheduling.
func perturb(x0 dynamo.State, nq, trials int, seed uint64, c *MonteCarloConfig) []dynamo.State {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	noise := func(sigma float64) float64 {
		if sigma == 0 {
			return 0
		}
		return distuv.Normal{Mu: 0, Sigma: sigma, Src: src}.Rand()
	}
	out := make([]dynamo.State, trials)
	for i := range out {
		x := x0.Clone()
		x[2] += noise(c.HeightSigma)
		x[3] += noise(c.TiltSigma)
		x[4] += noise(c.TiltSigma)
		for k := 0; k < 3; k++ {
			x[nq+k] += noise(c.VelocitySigma)
		}
		out[i] = x
	}
	return out
}

// RunMonteCarlo builds and initializes one experiment per trial on up to
// Workers goroutines, then runs them as a sim.Ensemble.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, logger *zap.Logger) ([]MonteCarloResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	probe, err := experiment.Build(cfg.Config, cfg.Controller, logger)
	if err != nil {
		return nil, err
	}
	starts := perturb(probe.InitialState(), probe.Model.DimQ(), cfg.Trials, cfg.Seed, cfg)

	jobs := make([]sim.Job, cfg.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, x0 := range starts {
		g.Go(func() error {
			e := probe
			if i > 0 {
				var err error
				if e, err = experiment.Build(cfg.Config, cfg.Controller, logger); err != nil {
					return err
				}
			}
			job, err := e.Job(gctx, fmt.Sprintf("trial %d", i), x0)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			jobs[i] = job
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	runs, err := sim.NewEnsemble(cfg.Workers).Run(ctx, jobs)
	if err != nil {
		return nil, err
	}
	results := make([]MonteCarloResult, cfg.Trials)
	for i, result := range runs {
		r := MonteCarloResult{TrialID: i, InitState: starts[i], Metrics: result.Metrics}
		if n := len(result.States); n > 0 {
			r.FinalState = result.States[n-1]
			r.Stable = len(result.Errors) == 0 && r.FinalState.IsValid() && r.FinalState[2] >= cfg.MinHeight
		}
		results[i] = r
		logger.Debug("monte carlo trial", zap.Int("trial", i), zap.Bool("stable", r.Stable))
	}
	return results, nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}

// MetricSummary is the mean and standard deviation of one metric over
// the trials that reported it.
func MetricSummary(results []MonteCarloResult, name string) (mean, std float64, n int) {
	values := make([]float64, 0, len(results))
	for _, r := range results {
		if v, ok := r.Metrics[name]; ok {
			values = append(values, v)
		}
	}
	switch len(values) {
	case 0:
		return 0, 0, 0
	case 1:
		return values[0], 0, 1
	}
	mean, std = stat.MeanStdDev(values, nil)
	return mean, std, len(values)
}
