// Package experiment assembles a closed-loop trotting run from a
// configuration: robot, costs, constraints, problem, controller, plant
// and simulator.
package experiment

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/constraint"
	"github.com/san-kum/legmpc/internal/cost"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/gait"
	"github.com/san-kum/legmpc/internal/integrators"
	"github.com/san-kum/legmpc/internal/mpc"
	"github.com/san-kum/legmpc/internal/ocp"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/sim"
)

type Experiment struct {
	Config     *config.Config
	Name       string
	Model      *robot.Quadruped
	Problem    *ocp.OCP
	Planner    *gait.TrottingPlanner
	MPC        *mpc.MPC
	Controller sim.Controller
	Plant      *ocp.Plant
	Simulator  *sim.Simulator
	Metrics    []dynamo.Metric

	logger *zap.Logger
}

func vec(w []float64) r3.Vector {
	if len(w) != 3 {
		return r3.Vector{}
	}
	return r3.Vector{X: w[0], Y: w[1], Z: w[2]}
}

// Build assembles the experiment for controller, one of the registry's
// controllers. The MPC is built in every case since its problem and
// gait define the schedule the metrics compare against.
func Build(cfg *config.Config, controller string, logger *zap.Logger) (*Experiment, error) {
	return DefaultRegistry().Build(cfg, controller, logger)
}

func (r *Registry) Build(cfg *config.Config, controller string, logger *zap.Logger) (*Experiment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := r.Controller(controller)
	if err != nil {
		return nil, err
	}
	e := &Experiment{Config: cfg, Name: controller, logger: logger}
	if err := e.buildModel(); err != nil {
		return nil, fmt.Errorf("robot: %w", err)
	}
	if err := e.buildProblem(); err != nil {
		return nil, fmt.Errorf("problem: %w", err)
	}
	if err := e.buildMPC(); err != nil {
		return nil, fmt.Errorf("mpc: %w", err)
	}
	if e.Controller, err = factory(e); err != nil {
		return nil, fmt.Errorf("controller %s: %w", controller, err)
	}

	integ, err := integrators.New(cfg.Sim.Integrator)
	if err != nil {
		return nil, err
	}
	e.Plant = ocp.NewPlant(e.Model, integ, cfg.Constraints.Friction)
	e.Simulator = sim.New(e.Controller, e.Plant, e.Model.DimQ(),
		sim.WithLogger(logger.Named("sim")),
		sim.WithTorqueLimit(e.Model.Limits().UMax))
	for _, name := range r.MetricNames() {
		m, err := r.Metric(name, e)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", name, err)
		}
		e.Metrics = append(e.Metrics, m)
		e.Simulator.AddMetric(m)
	}
	return e, nil
}

func (e *Experiment) buildModel() error {
	var err error
	e.Model, err = LoadModel(e.Config.Robot)
	return err
}

// LoadModel builds the robot a configuration describes.
func LoadModel(rc config.RobotConfig) (*robot.Quadruped, error) {
	base, err := robot.ParseBaseJoint(rc.BaseJoint)
	if err != nil {
		return nil, err
	}
	types, err := robot.ParseContactTypes(rc.ContactTypes)
	if err != nil {
		return nil, err
	}
	return robot.Load(rc.Description, base, rc.ContactFrames, types, rc.Baumgarte)
}

func (e *Experiment) buildProblem() error {
	cc := e.Config.Cost
	configuration, err := cost.NewConfiguration(e.Model, cost.ConfigurationWeights{
		QRef: cc.QStanding,
		Q:    cc.QWeight,
		V:    cc.VWeight,
		U:    cc.UWeight,
		QI:   cc.QIWeight,
		VI:   cc.VIWeight,
		DVI:  cc.DVIWeight,
	})
	if err != nil {
		return err
	}
	costs := cost.NewFunction(configuration)
	for c := range e.Model.ContactFrames() {
		foot, err := cost.NewFootTracking(e.Model, c, cost.TrackWeights{Running: vec(cc.FootTrackWeight)})
		if err != nil {
			return err
		}
		costs.Add(foot)
	}
	com, err := cost.NewCoM(nil, cost.TrackWeights{Running: vec(cc.CoMWeight)})
	if err != nil {
		return err
	}
	costs.Add(com)

	kc := e.Config.Constraints
	constraints, err := constraint.NewSet(kc.Barrier)
	if err != nil {
		return err
	}
	if err := constraint.AddJointLimits(constraints, e.Model); err != nil {
		return err
	}
	cone, err := constraint.NewFrictionCone(kc.Friction, kc.Facets)
	if err != nil {
		return err
	}
	constraints.Add(cone)

	oc := e.Config.OCP
	e.Problem, err = ocp.New(e.Model, costs, constraints, oc.Horizon, oc.Knots, oc.MaxSteps,
		ocp.WithLogger(e.logger.Named("ocp")))
	return err
}

func (e *Experiment) buildMPC() error {
	var err error
	e.MPC, err = mpc.New(e.Problem, e.Config.MPC.Workers, mpc.WithLogger(e.logger.Named("mpc")))
	if err != nil {
		return err
	}
	if err := e.MPC.SetSolverOptions(e.Config.MPC.Tick); err != nil {
		return err
	}
	gc := e.Config.Gait
	e.Planner, err = gait.NewTrottingPlanner(e.Model)
	if err != nil {
		return err
	}
	e.Planner.SetGaitPattern(vec(gc.Step), gc.YawPerStep)
	e.Planner.SetFirstStepHalf(gc.FirstStepHalf)
	if err := e.Planner.SetStepHeight(gc.StepHeight); err != nil {
		return err
	}
	return e.MPC.SetGaitPattern(e.Planner, gc.SwingTime, gc.InitialLiftTime)
}

// InitialState is the standing configuration at rest.
func (e *Experiment) InitialState() dynamo.State {
	return dynamo.NewState(e.Config.Cost.QStanding, make([]float64, e.Model.DimV()))
}

// Init solves the first horizon from the standing configuration with
// the configured init options.
func (e *Experiment) Init(ctx context.Context) (mpc.Command, error) {
	return e.initAt(ctx, e.InitialState())
}

func (e *Experiment) initAt(ctx context.Context, x0 dynamo.State) (mpc.Command, error) {
	q, v := x0.Split(e.Model.DimQ())
	return e.MPC.Init(ctx, 0, q, v, e.Config.MPC.Init)
}

func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{
		Duration:      e.Config.Sim.Duration,
		ControlPeriod: e.Config.Sim.ControlPeriod,
		Dt:            e.Config.Sim.Dt,
		ValidateState: true,
	}
}

// Pattern is the gait the MPC follows, planned from the standing
// configuration when the MPC has not been initialized.
func (e *Experiment) Pattern() (*gait.Pattern, error) {
	if p := e.MPC.Pattern(); p != nil {
		return p, nil
	}
	q, _ := e.InitialState().Split(e.Model.DimQ())
	if err := e.Planner.Reset(q); err != nil {
		return nil, err
	}
	return e.Planner.Plan(e.Config.Gait.SwingTime, e.Config.Gait.InitialLiftTime)
}

// UsesMPC reports whether the MPC closes the loop.
func (e *Experiment) UsesMPC() bool { return e.Controller == sim.Controller(e.MPC) }

// Run simulates from the standing configuration.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.RunFrom(ctx, e.InitialState())
}

// RunFrom initializes the MPC at x0 if it closes the loop and simulates
// from x0.
func (e *Experiment) RunFrom(ctx context.Context, x0 dynamo.State) (*sim.Result, error) {
	job, err := e.Job(ctx, e.Name, x0)
	if err != nil {
		return nil, err
	}
	e.logger.Info("running experiment",
		zap.String("controller", e.Name),
		zap.Float64("duration", e.Config.Sim.Duration))
	return job.Sim.Run(ctx, job.X0, job.T0, job.Cfg)
}

// Job prepares a run from x0 for a sim.Ensemble, initializing the MPC
// at x0 if it closes the loop.
func (e *Experiment) Job(ctx context.Context, name string, x0 dynamo.State) (sim.Job, error) {
	if err := dynamo.CheckDim("initial state", len(x0), e.Model.DimQ()+e.Model.DimV()); err != nil {
		return sim.Job{}, err
	}
	if e.UsesMPC() && e.MPC.Status() == mpc.Uninitialized {
		if _, err := e.initAt(ctx, x0); err != nil {
			return sim.Job{}, err
		}
	}
	return sim.Job{Name: name, Sim: e.Simulator, X0: x0, T0: 0, Cfg: e.SimConfig()}, nil
}
