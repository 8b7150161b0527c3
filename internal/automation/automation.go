// Package automation runs scripted batches of closed-loop experiments:
// scenario files listing runs, and Monte Carlo trials from perturbed
// initial states.
package automation

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/experiment"
	"github.com/san-kum/legmpc/internal/sim"
)

// Scenario defines a scripted sequence of runs.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Runs        []ScenarioRun `yaml:"runs"`
}

// ScenarioRun is one run of a scenario. Config takes precedence over
// Preset; the remaining fields override the resolved configuration
// when set.
type ScenarioRun struct {
	Name       string    `yaml:"name"`
	Preset     string    `yaml:"preset"`
	Config     string    `yaml:"config"`
	Controller string    `yaml:"controller"`
	Duration   float64   `yaml:"duration"`
	Integrator string    `yaml:"integrator"`
	Step       []float64 `yaml:"step_length"`
	Save       bool      `yaml:"save"`
}

// Outcome is a finished scenario run.
type Outcome struct {
	Run    ScenarioRun
	Config *config.Config
	Result *sim.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfig, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Runs) == 0 {
		return dynamo.Configf("scenario %q has no runs", s.Name)
	}
	var err error
	for i, r := range s.Runs {
		if r.Preset == "" && r.Config == "" {
			err = multierr.Append(err, dynamo.Configf("run %d: needs a preset or a config", i+1))
		}
		if r.Preset != "" && r.Config == "" && config.GetPreset(r.Preset) == nil {
			err = multierr.Append(err, dynamo.Configf("run %d: unknown preset %q", i+1, r.Preset))
		}
		if r.Duration < 0 {
			err = multierr.Append(err, dynamo.Configf("run %d: negative duration %g", i+1, r.Duration))
		}
		if r.Step != nil && len(r.Step) != 3 {
			err = multierr.Append(err, fmt.Errorf("run %d: %w", i+1, dynamo.CheckDim("step_length", len(r.Step), 3)))
		}
	}
	return err
}

// Resolve builds the configuration of r.
func (r ScenarioRun) Resolve() (*config.Config, error) {
	var cfg *config.Config
	if r.Config != "" {
		loaded, err := config.Load(r.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if cfg = config.GetPreset(r.Preset); cfg == nil {
		return nil, dynamo.Configf("unknown preset %q", r.Preset)
	}
	if r.Duration > 0 {
		cfg.Sim.Duration = r.Duration
	}
	if r.Integrator != "" {
		cfg.Sim.Integrator = r.Integrator
	}
	if r.Step != nil {
		cfg.Gait.Step = append([]float64(nil), r.Step...)
	}
	return cfg, cfg.Validate()
}

// ControllerName defaults to the MPC.
func (r ScenarioRun) ControllerName() string {
	if r.Controller == "" {
		return "mpc"
	}
	return r.Controller
}

// RunScenario executes the runs in order and stops at the first failure.
// done, if not nil, is called after every run.
func RunScenario(ctx context.Context, scenario *Scenario, logger *zap.Logger, done func(i int, o Outcome) error) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(scenario.Runs))
	for i, run := range scenario.Runs {
		label := run.Name
		if label == "" {
			label = run.Preset
		}
		logger.Info("scenario run",
			zap.String("scenario", scenario.Name),
			zap.Int("run", i+1),
			zap.Int("of", len(scenario.Runs)),
			zap.String("name", label))

		cfg, err := run.Resolve()
		if err != nil {
			return outcomes, fmt.Errorf("run %d: %w", i+1, err)
		}
		e, err := experiment.Build(cfg, run.ControllerName(), logger)
		if err != nil {
			return outcomes, fmt.Errorf("run %d setup: %w", i+1, err)
		}
		result, err := e.Run(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("run %d: %w", i+1, err)
		}

		o := Outcome{Run: run, Config: cfg, Result: result}
		outcomes = append(outcomes, o)
		if done != nil {
			if err := done(i, o); err != nil {
				return outcomes, err
			}
		}
	}
	return outcomes, nil
}
