package optim

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/experiment"
)

type setter func(cfg *config.Config, v float64)

func stepAxis(axis int) setter {
	return func(cfg *config.Config, v float64) {
		step := make([]float64, 3)
		copy(step, cfg.Gait.Step)
		step[axis] = v
		cfg.Gait.Step = step
	}
}

var setters = map[string]setter{
	"step_x":       stepAxis(0),
	"step_y":       stepAxis(1),
	"step_z":       stepAxis(2),
	"yaw_per_step": func(cfg *config.Config, v float64) { cfg.Gait.YawPerStep = v },
	"step_height":  func(cfg *config.Config, v float64) { cfg.Gait.StepHeight = v },
	"swing_time":   func(cfg *config.Config, v float64) { cfg.Gait.SwingTime = v },
	"friction":     func(cfg *config.Config, v float64) { cfg.Constraints.Friction = v },
	"barrier":      func(cfg *config.Config, v float64) { cfg.Constraints.Barrier = v },
	"horizon":      func(cfg *config.Config, v float64) { cfg.OCP.Horizon = v },
	"knots":        func(cfg *config.Config, v float64) { cfg.OCP.Knots = int(v) },
}

// ParamNames lists the parameters Apply understands.
func ParamNames() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params set.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg, err := base.Clone()
	if err != nil {
		return nil, err
	}
	for name, v := range params {
		set, ok := setters[name]
		if !ok {
			return nil, dynamo.Configf("unknown parameter %q (available: %v)", name, ParamNames())
		}
		set(cfg, v)
	}
	return cfg, nil
}

// MetricObjective scores an assignment by the named metric of a
// closed-loop run of base with the assignment applied. Runs that stop
// early score as the metric times penalty.
func MetricObjective(base *config.Config, controller, metric string, penalty float64, logger *zap.Logger) Evaluate {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return 0, err
		}
		e, err := experiment.Build(cfg, controller, logger)
		if err != nil {
			return 0, err
		}
		result, err := e.Run(ctx)
		if err != nil {
			return 0, err
		}
		v, ok := result.Metrics[metric]
		if !ok {
			return 0, dynamo.Configf("run reported no metric %q", metric)
		}
		if len(result.Errors) > 0 {
			v *= penalty
		}
		logger.Debug("evaluated grid point", zap.Any("params", params), zap.Float64(metric, v))
		return v, nil
	}
}
