// Package mpc drives the receding-horizon loop: it owns the warm start
// across control ticks, re-discretizes the problem at every tick and
// returns the first control of the re-solved horizon with its feedback
// gain.
package mpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/gait"
	"github.com/san-kum/legmpc/internal/ocp"
	"github.com/san-kum/legmpc/internal/reference"
	"github.com/san-kum/legmpc/internal/solver"
)

var ErrNotInitialized = errors.New("mpc: controller is not initialized")

// Status is the lifecycle state of a controller.
type Status int

const (
	Uninitialized Status = iota
	Initialized
	Running
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Command is the output of one tick. U is the control of the first knot
// and K its feedback gain on the state deviation from X, so a plant loop
// between ticks applies u = U + K(x - X).
type Command struct {
	U           dynamo.Control
	K           *mat.Dense
	X           dynamo.State
	Time        float64
	Diagnostics solver.Diagnostics
}

// State is a snapshot of everything the controller carries between
// ticks.
type State struct {
	Solution  *solver.Solution
	Time      float64
	Status    Status
	GaitPhase float64
}

// MPC is safe for concurrent use; Init and Update calls are serialized.
type MPC struct {
	mu sync.Mutex

	problem *ocp.OCP
	solver  *solver.Solver
	logger  *zap.Logger
	options solver.Options

	planner     gait.Planner
	swingTime   float64
	liftTime    float64
	pattern     *gait.Pattern
	generator   *reference.Generator

	status Status
	sol    *solver.Solution
	time   float64
	q      []float64
}

type Option func(*MPC)

func WithLogger(l *zap.Logger) Option {
	return func(m *MPC) { m.logger = l }
}

// New builds a controller over problem with a pool of workers.
func New(problem *ocp.OCP, workers int, opts ...Option) (*MPC, error) {
	if problem == nil {
		return nil, dynamo.Configf("mpc needs an optimal control problem")
	}
	m := &MPC{
		problem: problem,
		logger:  zap.NewNop(),
		options: tickOptions(),
	}
	for _, opt := range opts {
		opt(m)
	}
	s, err := solver.New(problem, workers, solver.WithLogger(m.logger.Named("solver")))
	if err != nil {
		return nil, err
	}
	m.solver = s
	return m, nil
}

func tickOptions() solver.Options {
	o := solver.DefaultOptions()
	o.MaxIter = 1
	return o
}

// SetGaitPattern plans the gait with planner and binds its contact
// schedule and reference tracks into the problem. Before Init the plan
// is deferred to Init; afterwards the gait is replanned from the last
// measured configuration and counts its steps from the last tick.
func (m *MPC) SetGaitPattern(planner gait.Planner, swingTime, initialLiftTime float64) error {
	if planner == nil {
		return dynamo.Configf("gait planner is nil")
	}
	if !(swingTime > 0) {
		return dynamo.Configf("swing time must be positive, got %g", swingTime)
	}
	if !(initialLiftTime >= 0) {
		return dynamo.Configf("initial lift time must be non-negative, got %g", initialLiftTime)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.planner = planner
	m.swingTime = swingTime
	m.liftTime = initialLiftTime
	if m.status == Uninitialized {
		return nil
	}
	return m.plan(m.q, m.time)
}

// plan anchors the gait at configuration q measured at time t.
func (m *MPC) plan(q []float64, t float64) error {
	if m.planner == nil {
		return nil
	}
	if err := m.planner.Reset(q); err != nil {
		return err
	}
	pattern, err := m.planner.Plan(m.swingTime, m.liftTime)
	if err != nil {
		return err
	}
	pattern = pattern.Rebase(t)
	gen, err := reference.NewGenerator(pattern, pattern.StepHeight())
	if err != nil {
		return err
	}
	if err := m.problem.SetContactSequence(pattern); err != nil {
		return err
	}
	m.problem.Cost().BindTracks(gen)
	m.pattern = pattern
	m.generator = gen
	return nil
}

// SetSolverOptions replaces the options used by Update.
func (m *MPC) SetSolverOptions(o solver.Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = o
	return nil
}

func (m *MPC) state(q, v []float64) (dynamo.State, error) {
	model := m.problem.Model()
	if err := dynamo.CheckDim("q", len(q), model.DimQ()); err != nil {
		return nil, err
	}
	if err := dynamo.CheckDim("v", len(v), model.DimV()); err != nil {
		return nil, err
	}
	x := dynamo.NewState(q, v)
	if !x.IsValid() {
		return nil, dynamo.ErrInvalidState
	}
	return x, nil
}

// Init plans the gait at q, holds the measured state over the horizon
// with gravity-compensating torques and solves from there with options.
func (m *MPC) Init(ctx context.Context, t float64, q, v []float64, options solver.Options) (Command, error) {
	if err := options.Validate(); err != nil {
		return Command{}, err
	}
	x, err := m.state(q, v)
	if err != nil {
		return Command{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.plan(q, t); err != nil {
		return Command{}, err
	}
	if err := m.problem.Discretize(t); err != nil {
		return Command{}, err
	}
	if err := m.problem.SetInitialState(x); err != nil {
		return Command{}, err
	}
	xs, us, err := m.problem.StaticGuess(x)
	if err != nil {
		return Command{}, err
	}
	sol := solver.NewSolution(m.problem.KnotTimes(), m.problem.KnotKinds(), x, m.problem.DimU())
	sol.X, sol.U = xs, us

	diag := m.solver.Solve(ctx, sol, options)
	m.logger.Info("mpc initialized",
		zap.Float64("t", t),
		zap.Int("knots", m.problem.NumKnots()),
		zap.Stringer("diagnostics", diag))
	if diag.Failure != "" {
		m.logger.Warn("initial solve failed", zap.String("failure", diag.Failure))
	}

	m.sol = sol
	m.time = t
	m.q = append([]float64(nil), q...)
	m.status = Initialized
	return m.command(t), nil
}

// Update re-solves the horizon from the measured state at time t with a
// warm start shifted from the previous solution.
func (m *MPC) Update(ctx context.Context, t float64, q, v []float64) (Command, error) {
	x, err := m.state(q, v)
	if err != nil {
		return Command{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == Uninitialized {
		return Command{}, ErrNotInitialized
	}

	if err := m.problem.Discretize(t); err != nil {
		return Command{}, err
	}
	if err := m.problem.SetInitialState(x); err != nil {
		return Command{}, err
	}
	warm := m.sol.Interpolate(m.problem.KnotTimes(), m.problem.KnotKinds())
	copy(warm.X[0], x)

	diag := m.solver.Solve(ctx, warm, m.options)
	if ce := m.logger.Check(zap.DebugLevel, "mpc tick"); ce != nil {
		ce.Write(zap.Float64("t", t), zap.Stringer("diagnostics", diag))
	}
	if diag.Failure != "" {
		m.logger.Warn("tick solve failed", zap.Float64("t", t), zap.String("failure", diag.Failure))
	}

	m.sol = warm
	m.time = t
	m.q = append(m.q[:0], q...)
	m.status = Running
	return m.command(t), nil
}

func (m *MPC) command(t float64) Command {
	sol := m.sol
	c := Command{
		U:           sol.U[0].Clone(),
		X:           sol.X[0].Clone(),
		Time:        t,
		Diagnostics: sol.Diagnostics,
	}
	if len(sol.K) > 0 && sol.K[0] != nil && len(c.U) > 0 {
		c.K = mat.DenseCopyOf(sol.K[0].Slice(0, len(c.U), 0, len(c.X)))
	}
	return c
}

func (m *MPC) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Time is the time of the last Init or Update.
func (m *MPC) Time() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.time
}

// Phase is the gait phase at the last tick in [0, period), or zero
// before the first lift-off or without a gait.
func (m *MPC) Phase() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase(m.time)
}

func (m *MPC) phase(t float64) float64 {
	if m.pattern == nil || t < m.pattern.InitialLiftTime() {
		return 0
	}
	return math.Mod(t-m.pattern.InitialLiftTime(), m.pattern.Period())
}

// Solution returns a copy of the current solution.
func (m *MPC) Solution() *solver.Solution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sol.Clone()
}

// Pattern is the gait bound into the problem, nil while standing.
func (m *MPC) Pattern() *gait.Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pattern
}

// Generator is the reference generator of the bound gait.
func (m *MPC) Generator() *reference.Generator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generator
}

// ContactStatus is the scheduled contact status at t.
func (m *MPC) ContactStatus(t float64) []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pattern != nil {
		return m.pattern.ContactStatus(t)
	}
	active := make([]bool, len(m.problem.Model().ContactFrames()))
	for i := range active {
		active[i] = true
	}
	return active
}

// OCP is the problem the controller solves.
func (m *MPC) OCP() *ocp.OCP { return m.problem }

// State snapshots the controller.
func (m *MPC) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Solution:  m.sol.Clone(),
		Time:      m.time,
		Status:    m.status,
		GaitPhase: m.phase(m.time),
	}
}

// Restore rewinds the controller to a snapshot taken with State.
func (m *MPC) Restore(s State) error {
	if s.Status != Uninitialized && s.Solution == nil {
		return dynamo.Configf("mpc state %v has no solution", s.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sol = s.Solution.Clone()
	m.time = s.Time
	m.status = s.Status
	return nil
}
