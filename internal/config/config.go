package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/solver"
)

const (
	DefaultBaumgarte       = 0.05
	DefaultStepHeight      = 0.1
	DefaultSwingTime       = 0.25
	DefaultInitialLiftTime = 0.5
	DefaultHorizon         = 0.5
	DefaultKnots           = 18
	DefaultMaxSteps        = 3
	DefaultBarrier         = 1e-3
	DefaultFriction        = 0.5
	DefaultFacets          = 8
	DefaultWorkers         = 4
	DefaultDuration        = 3.0
	DefaultControlPeriod   = 0.02
	DefaultSimDt           = 0.0025
)

type Config struct {
	Robot       RobotConfig      `yaml:"robot"`
	Gait        GaitConfig       `yaml:"gait"`
	Cost        CostConfig       `yaml:"cost"`
	Constraints ConstraintConfig `yaml:"constraints"`
	OCP         OCPConfig        `yaml:"ocp"`
	MPC         MPCConfig        `yaml:"mpc"`
	Sim         SimConfig        `yaml:"sim"`
}

type RobotConfig struct {
	// Description is a robot description file; empty selects the
	// embedded A1 description.
	Description   string   `yaml:"description"`
	BaseJoint     string   `yaml:"base_joint"`
	ContactFrames []string `yaml:"contact_frames"`
	ContactTypes  []string `yaml:"contact_types"`
	Baumgarte     float64  `yaml:"baumgarte_time_step"`
}

type GaitConfig struct {
	Step            []float64 `yaml:"step_length"`
	YawPerStep      float64   `yaml:"yaw_per_step"`
	StepHeight      float64   `yaml:"step_height"`
	SwingTime       float64   `yaml:"swing_time"`
	InitialLiftTime float64   `yaml:"initial_lift_time"`
	FirstStepHalf   bool      `yaml:"first_step_half"`
}

type CostConfig struct {
	QStanding       []float64 `yaml:"q_standing"`
	QWeight         []float64 `yaml:"q_weight"`
	VWeight         []float64 `yaml:"v_weight"`
	UWeight         []float64 `yaml:"u_weight"`
	QIWeight        []float64 `yaml:"qi_weight"`
	VIWeight        []float64 `yaml:"vi_weight"`
	DVIWeight       []float64 `yaml:"dvi_weight"`
	FootTrackWeight []float64 `yaml:"foot_track_weight"`
	CoMWeight       []float64 `yaml:"com_weight"`
}

type ConstraintConfig struct {
	Barrier  float64 `yaml:"barrier"`
	Friction float64 `yaml:"friction_coefficient"`
	Facets   int     `yaml:"friction_facets"`
}

type OCPConfig struct {
	Horizon  float64 `yaml:"horizon"`
	Knots    int     `yaml:"knots"`
	MaxSteps int     `yaml:"max_steps"`
}

type MPCConfig struct {
	Workers int            `yaml:"workers"`
	Init    solver.Options `yaml:"init_options"`
	Tick    solver.Options `yaml:"tick_options"`
}

type SimConfig struct {
	Duration      float64 `yaml:"duration"`
	ControlPeriod float64 `yaml:"control_period"`
	Dt            float64 `yaml:"dt"`
	Integrator    string  `yaml:"integrator"`
}

func full(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// legs repeats a per-leg triple after the six base coordinates.
func legs(base []float64, leg ...float64) []float64 {
	out := append([]float64(nil), base...)
	for i := 0; i < 4; i++ {
		out = append(out, leg...)
	}
	return out
}

// DefaultConfig is the A1 trotting setup: 0.15 m steps of 0.25 s
// starting 0.5 s in, over a 0.5 s horizon of 18 knots.
func DefaultConfig() *Config {
	qWeight := legs([]float64{0, 0, 0, 100, 100, 100}, 0.001, 0.001, 0.001)
	vWeight := full(18, 1)
	init := solver.DefaultOptions()
	init.MaxIter = 10
	tick := solver.DefaultOptions()
	tick.MaxIter = 1
	return &Config{
		Robot: RobotConfig{
			BaseJoint:     "floating",
			ContactFrames: []string{"FL_foot", "RL_foot", "FR_foot", "RR_foot"},
			ContactTypes:  []string{"point", "point", "point", "point"},
			Baumgarte:     DefaultBaumgarte,
		},
		Gait: GaitConfig{
			Step:            []float64{0.15, 0, 0},
			StepHeight:      DefaultStepHeight,
			SwingTime:       DefaultSwingTime,
			InitialLiftTime: DefaultInitialLiftTime,
		},
		Cost: CostConfig{
			QStanding:       legs([]float64{0, 0, 0.3181, 0, 0, 0}, 0, 0.67, -1.3),
			QWeight:         qWeight,
			VWeight:         vWeight,
			UWeight:         full(12, 1e-2),
			QIWeight:        legs([]float64{0, 0, 0, 100, 100, 100}, 1, 1, 1),
			VIWeight:        full(18, 1),
			DVIWeight:       full(18, 1e-3),
			FootTrackWeight: full(3, 1e4),
			CoMWeight:       full(3, 1e3),
		},
		Constraints: ConstraintConfig{
			Barrier:  DefaultBarrier,
			Friction: DefaultFriction,
			Facets:   DefaultFacets,
		},
		OCP: OCPConfig{
			Horizon:  DefaultHorizon,
			Knots:    DefaultKnots,
			MaxSteps: DefaultMaxSteps,
		},
		MPC: MPCConfig{
			Workers: DefaultWorkers,
			Init:    init,
			Tick:    tick,
		},
		Sim: SimConfig{
			Duration:      DefaultDuration,
			ControlPeriod: DefaultControlPeriod,
			Dt:            DefaultSimDt,
			Integrator:    "semi-implicit-euler",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone deep-copies c through its YAML form.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the settings that do not need the robot model.
// Dimension checks against the model happen when the controller is built.
func (c *Config) Validate() error {
	var err error
	if c.Robot.BaseJoint != "floating" && c.Robot.BaseJoint != "fixed" {
		err = multierr.Append(err, dynamo.Configf("base_joint must be floating or fixed, got %q", c.Robot.BaseJoint))
	}
	if len(c.Robot.ContactTypes) != len(c.Robot.ContactFrames) {
		err = multierr.Append(err, dynamo.CheckDim("contact_types", len(c.Robot.ContactTypes), len(c.Robot.ContactFrames)))
	}
	if len(c.Gait.Step) != 3 {
		err = multierr.Append(err, dynamo.CheckDim("step_length", len(c.Gait.Step), 3))
	}
	if !(c.Gait.SwingTime > 0) {
		err = multierr.Append(err, dynamo.Configf("swing_time must be positive, got %g", c.Gait.SwingTime))
	}
	if c.Gait.InitialLiftTime < 0 {
		err = multierr.Append(err, dynamo.Configf("initial_lift_time must be non-negative, got %g", c.Gait.InitialLiftTime))
	}
	if c.Gait.StepHeight < 0 {
		err = multierr.Append(err, dynamo.Configf("step_height must be non-negative, got %g", c.Gait.StepHeight))
	}
	for _, f := range []struct {
		name string
		w    []float64
	}{
		{"foot_track_weight", c.Cost.FootTrackWeight},
		{"com_weight", c.Cost.CoMWeight},
	} {
		if f.w != nil && len(f.w) != 3 {
			err = multierr.Append(err, dynamo.CheckDim(f.name, len(f.w), 3))
		}
	}
	if !(c.OCP.Horizon > 0) {
		err = multierr.Append(err, dynamo.Configf("horizon must be positive, got %g", c.OCP.Horizon))
	}
	if c.OCP.Knots <= 0 {
		err = multierr.Append(err, dynamo.Configf("knots must be positive, got %d", c.OCP.Knots))
	}
	if c.OCP.MaxSteps < 0 {
		err = multierr.Append(err, dynamo.Configf("max_steps must be non-negative, got %d", c.OCP.MaxSteps))
	}
	if c.MPC.Workers <= 0 {
		err = multierr.Append(err, dynamo.Configf("workers must be positive, got %d", c.MPC.Workers))
	}
	err = multierr.Append(err, c.MPC.Init.Validate())
	err = multierr.Append(err, c.MPC.Tick.Validate())
	if !(c.Sim.Dt > 0) || !(c.Sim.ControlPeriod >= c.Sim.Dt) {
		err = multierr.Append(err, dynamo.Configf("sim dt %g must be positive and at most the control period %g",
			c.Sim.Dt, c.Sim.ControlPeriod))
	}
	if c.Sim.Duration < 0 {
		err = multierr.Append(err, dynamo.Configf("sim duration must be non-negative, got %g", c.Sim.Duration))
	}
	return err
}
