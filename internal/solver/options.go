package solver

import (
	"time"

	"go.uber.org/multierr"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// LineSearch configures the backtracking over step sizes
// α = StepDecrease^j, j = 0, 1, ... down to MinStepSize.
type LineSearch struct {
	StepDecrease float64 `yaml:"step_decrease"`
	MinStepSize  float64 `yaml:"min_step_size"`
	// Armijo is the fraction of the predicted decrease a step must achieve.
	Armijo float64 `yaml:"armijo"`
}

// Options control one Solve call.
type Options struct {
	MaxIter int     `yaml:"max_iter"`
	KKTTol  float64 `yaml:"kkt_tol"`

	// InitialBarrier is used when the solution carries no barrier of its
	// own. The barrier is lowered by BarrierDecrease, never below
	// MinBarrier, once the KKT error drops below max(KKTTol, 10μ).
	InitialBarrier  float64 `yaml:"initial_barrier"`
	MinBarrier      float64 `yaml:"min_barrier"`
	BarrierDecrease float64 `yaml:"barrier_decrease"`

	LineSearch LineSearch `yaml:"line_search"`

	// Regularization is the initial ρ added to Quu.
	Regularization float64 `yaml:"regularization"`

	// Deadline bounds the wall time of a Solve. Zero means no bound.
	Deadline time.Duration `yaml:"deadline"`
}

func DefaultOptions() Options {
	return Options{
		MaxIter:         100,
		KKTTol:          1e-7,
		InitialBarrier:  1e-3,
		MinBarrier:      1e-3,
		BarrierDecrease: 0.2,
		LineSearch: LineSearch{
			StepDecrease: 0.75,
			MinStepSize:  0.05,
			Armijo:       1e-4,
		},
		Regularization: 1e-9,
	}
}

func (o Options) Validate() error {
	var err error
	if o.MaxIter < 1 {
		err = multierr.Append(err, dynamo.Configf("max_iter must be positive, got %d", o.MaxIter))
	}
	if !(o.KKTTol > 0) {
		err = multierr.Append(err, dynamo.Configf("kkt_tol must be positive, got %g", o.KKTTol))
	}
	if !(o.InitialBarrier > 0) || !(o.MinBarrier > 0) {
		err = multierr.Append(err, dynamo.Configf("barrier must be positive, got initial %g min %g",
			o.InitialBarrier, o.MinBarrier))
	}
	if !(o.BarrierDecrease > 0 && o.BarrierDecrease <= 1) {
		err = multierr.Append(err, dynamo.Configf("barrier_decrease must be in (0, 1], got %g", o.BarrierDecrease))
	}
	ls := o.LineSearch
	if !(ls.StepDecrease > 0 && ls.StepDecrease < 1) {
		err = multierr.Append(err, dynamo.Configf("step_decrease must be in (0, 1), got %g", ls.StepDecrease))
	}
	if !(ls.MinStepSize > 0 && ls.MinStepSize <= 1) {
		err = multierr.Append(err, dynamo.Configf("min_step_size must be in (0, 1], got %g", ls.MinStepSize))
	}
	if !(ls.Armijo >= 0 && ls.Armijo < 1) {
		err = multierr.Append(err, dynamo.Configf("armijo must be in [0, 1), got %g", ls.Armijo))
	}
	if !(o.Regularization >= 0) {
		err = multierr.Append(err, dynamo.Configf("regularization must be non-negative, got %g", o.Regularization))
	}
	if o.Deadline < 0 {
		err = multierr.Append(err, dynamo.Configf("deadline must be non-negative, got %v", o.Deadline))
	}
	return err
}

// steps lists the candidate step sizes from 1 down to MinStepSize.
func (ls LineSearch) steps() []float64 {
	var out []float64
	for a := 1.0; a >= ls.MinStepSize*(1-1e-12); a *= ls.StepDecrease {
		out = append(out, a)
	}
	return out
}
