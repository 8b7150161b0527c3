// Package ocp transcribes the switched optimal control problem of a
// legged robot onto a knot grid: uniform knots over the horizon plus
// impulse knots at contact switches, each bound to contact-consistent
// dynamics, the cost function and the constraint set.
package ocp

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/san-kum/legmpc/internal/constraint"
	"github.com/san-kum/legmpc/internal/cost"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/integrators"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/solver"
	"github.com/san-kum/legmpc/internal/stage"
)

// DefaultFiniteDifferenceStep is the relative perturbation used to
// linearize the knot dynamics.
const DefaultFiniteDifferenceStep = 1e-6

type worker struct {
	model robot.Model
	dyn   *ContactDynamics
	integ integrators.Integrator
	data  *stage.Data

	xs    dynamo.State
	xp    dynamo.State
	up    dynamo.Control
	next  dynamo.State
	nextP dynamo.State
	f0    []r3.Vector
	dv0   []float64
	dvP   []float64
}

// OCP is the transcribed problem. It implements solver.Problem.
type OCP struct {
	model       robot.Model
	cost        *cost.Function
	constraints *constraint.Set
	horizon     float64
	n           int
	maxSteps    int
	minDt       float64
	fdStep      float64
	logger      *zap.Logger

	seq      ContactSequence
	standing Standing
	anchored bool
	grid     *grid
	t0       float64
	built    bool
	x0       dynamo.State
	workers  []*worker
}

type Option func(*OCP)

// WithContactSequence binds seq and discretizes the horizon at t0.
func WithContactSequence(seq ContactSequence, t0 float64) Option {
	return func(o *OCP) {
		o.seq = seq
		o.t0 = t0
		o.built = true
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *OCP) { o.logger = l }
}

// WithMinDt sets the distance below which a switch snaps to a knot.
func WithMinDt(dt float64) Option {
	return func(o *OCP) { o.minDt = dt }
}

func WithFiniteDifferenceStep(eps float64) Option {
	return func(o *OCP) { o.fdStep = eps }
}

// New builds the problem over a horizon of length T with N uniform
// segments and room for maxSteps impulse knots.
func New(m robot.Model, c *cost.Function, cs *constraint.Set, T float64, N, maxSteps int, opts ...Option) (*OCP, error) {
	switch {
	case m == nil || c == nil || cs == nil:
		return nil, dynamo.Configf("ocp needs a model, a cost function and a constraint set")
	case !(T > 0):
		return nil, dynamo.Configf("horizon T must be positive, got %g", T)
	case N <= 0:
		return nil, dynamo.Configf("knot count N must be positive, got %d", N)
	case maxSteps < 0:
		return nil, dynamo.Configf("max_steps must be non-negative, got %d", maxSteps)
	}
	if m.DimQ() != m.DimV() {
		return nil, dynamo.Configf("ocp needs dim q == dim v, got %d and %d", m.DimQ(), m.DimV())
	}

	o := &OCP{
		model:       m.Clone(),
		cost:        c,
		constraints: cs,
		horizon:     T,
		n:           N,
		maxSteps:    maxSteps,
		minDt:       math.Min(1e-3, 0.25*T/float64(N)),
		fdStep:      DefaultFiniteDifferenceStep,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.grid = newGrid(N+1+maxSteps, len(m.ContactFrames()))
	o.x0 = make(dynamo.State, m.DimQ()+m.DimV())
	if o.seq != nil {
		if err := o.checkSequence(o.seq); err != nil {
			return nil, err
		}
	}
	if o.built {
		if err := o.Discretize(o.t0); err != nil {
			return nil, err
		}
	}
	o.Prepare(1)
	return o, nil
}

func (o *OCP) checkSequence(seq ContactSequence) error {
	if need := seq.MaxSwitches(o.horizon); need > o.maxSteps {
		return dynamo.Configf("contact sequence needs up to %d switches within T=%g, max_steps is %d",
			need, o.horizon, o.maxSteps)
	}
	if st := seq.ContactStatus(o.t0); len(st) != len(o.model.ContactFrames()) {
		return dynamo.CheckDim("contact sequence", len(st), len(o.model.ContactFrames()))
	}
	return nil
}

// SetContactSequence replaces the contact schedule. A sequence with more
// switches per horizon than max_steps is rejected.
func (o *OCP) SetContactSequence(seq ContactSequence) error {
	if seq == nil {
		return dynamo.Configf("contact sequence is nil")
	}
	if err := o.checkSequence(seq); err != nil {
		return err
	}
	o.seq = seq
	if o.built {
		return o.Discretize(o.t0)
	}
	return nil
}

func (o *OCP) sequence() ContactSequence {
	if o.seq != nil {
		return o.seq
	}
	if o.standing == nil {
		o.standing = make(Standing, len(o.model.ContactFrames()))
	}
	return o.standing
}

// Discretize lays out the knots for a horizon starting at t0.
func (o *OCP) Discretize(t0 float64) error {
	mu := o.constraints.FrictionCoefficient()
	if err := o.grid.build(o.sequence(), t0, o.horizon, o.n, o.minDt, mu); err != nil {
		return err
	}
	o.t0 = t0
	o.built = true
	if ce := o.logger.Check(zap.DebugLevel, "discretized horizon"); ce != nil {
		impulses := 0
		for _, k := range o.Knots() {
			if k.Kind == stage.Impulse {
				impulses++
			}
		}
		ce.Write(zap.Float64("t0", t0), zap.Int("knots", o.grid.active), zap.Int("impulses", impulses))
	}
	return nil
}

// SetInitialState fixes the state of knot 0. Without a contact sequence
// the robot stands on the footholds of the first initial state.
func (o *OCP) SetInitialState(x0 dynamo.State) error {
	if err := dynamo.CheckDim("x0", len(x0), len(o.x0)); err != nil {
		return err
	}
	if !x0.IsValid() {
		return dynamo.ErrInvalidState
	}
	copy(o.x0, x0)
	if o.seq == nil && !o.anchored {
		o.model.ForwardKinematics(x0[:o.model.DimQ()])
		st := make(Standing, len(o.model.ContactFrames()))
		for i, id := range o.model.ContactFrames() {
			st[i] = o.model.FramePosition(id)
		}
		o.standing = st
		o.anchored = true
		if o.built {
			return o.Discretize(o.t0)
		}
	}
	return nil
}

func (o *OCP) Model() robot.Model          { return o.model }
func (o *OCP) Cost() *cost.Function         { return o.cost }
func (o *OCP) Constraints() *constraint.Set { return o.constraints }
func (o *OCP) Horizon() float64             { return o.horizon }
func (o *OCP) N() int                       { return o.n }
func (o *OCP) MaxSteps() int                { return o.maxSteps }
func (o *OCP) Sequence() ContactSequence    { return o.seq }

// Knots returns the active knots.
func (o *OCP) Knots() []Knot { return o.grid.knots[:o.grid.active] }

func (o *OCP) KnotTimes() []float64 {
	out := make([]float64, o.grid.active)
	for i, k := range o.Knots() {
		out[i] = k.Time
	}
	return out
}

func (o *OCP) KnotKinds() []stage.Kind {
	out := make([]stage.Kind, o.grid.active)
	for i, k := range o.Knots() {
		out[i] = k.Kind
	}
	return out
}

func (o *OCP) DimX() int                  { return o.model.DimQ() + o.model.DimV() }
func (o *OCP) DimU() int                  { return o.model.DimU() }
func (o *OCP) NumKnots() int              { return o.grid.active }
func (o *OCP) Capacity() int              { return len(o.grid.knots) }
func (o *OCP) KnotTime(i int) float64     { return o.grid.knots[i].Time }
func (o *OCP) KnotKind(i int) stage.Kind  { return o.grid.knots[i].Kind }
func (o *OCP) InitialState() dynamo.State { return o.x0 }

// Prepare allocates per-worker robot clones and buffers.
func (o *OCP) Prepare(workers int) {
	nx, nu, nv := o.DimX(), o.DimU(), o.model.DimV()
	nc := len(o.model.ContactFrames())
	for len(o.workers) < workers {
		m := o.model.Clone()
		o.workers = append(o.workers, &worker{
			model: m,
			dyn:   NewContactDynamics(m),
			integ: integrators.NewSemiImplicitEuler(),
			data:  stage.NewData(m),
			xs:    make(dynamo.State, nx),
			xp:    make(dynamo.State, nx),
			up:    make(dynamo.Control, nu),
			next:  make(dynamo.State, nx),
			nextP: make(dynamo.State, nx),
			f0:    make([]r3.Vector, nc),
			dv0:   make([]float64, nv),
			dvP:   make([]float64, nv),
		})
	}
}

// simulate integrates the segment of knot kn from x under u, applying
// the touchdown jump first. Forces and the jump are left in w.dyn and dv.
func (o *OCP) simulate(w *worker, kn *Knot, x dynamo.State, u dynamo.Control, next dynamo.State, dv []float64) error {
	nq := o.model.DimQ()
	for i := range dv {
		dv[i] = 0
	}
	xs := x
	if kn.Jump {
		q, v := x.Split(nq)
		if err := w.dyn.Impulse(q, v, kn.Status.Active, dv); err != nil {
			return err
		}
		copy(w.xs, x)
		for i, d := range dv {
			w.xs[nq+i] += d
		}
		xs = w.xs
	}
	w.dyn.SetContactStatus(kn.Status)
	return w.integ.Step(w.dyn, xs, u, kn.Time, kn.Dt, next)
}

// fill sets the evaluation point of knot i and evaluates kinematics at q.
func (o *OCP) fill(w *worker, i int, x dynamo.State, u dynamo.Control) *stage.Data {
	kn := &o.grid.knots[i]
	d := w.data
	d.Index = i
	d.Kind = kn.Kind
	d.T = kn.Time
	d.Dt = kn.Dt
	d.Contacts = kn.Status
	copy(d.X, x)
	if u != nil {
		copy(d.U, u)
	} else {
		for j := range d.U {
			d.U[j] = 0
		}
	}
	w.model.ForwardKinematics(d.Q)
	d.Model = w.model
	return d
}

func (o *OCP) assess(d *stage.Data, mu float64) solver.Evaluation {
	b, feasible, violation := o.constraints.Assess(d, mu)
	return solver.Evaluation{
		Cost:      o.cost.Evaluate(d),
		Barrier:   b,
		Feasible:  feasible,
		Violation: violation,
	}
}

func (o *OCP) stageError(i int, err error) error {
	return &dynamo.StageError{Stage: i, Time: o.grid.knots[i].Time, Wrapped: err}
}

func (o *OCP) Stage(wi, i int, x dynamo.State, u dynamo.Control, mu float64, next dynamo.State) (solver.Evaluation, error) {
	w := o.workers[wi]
	kn := &o.grid.knots[i]
	if kn.Kind == stage.Terminal {
		return o.assess(o.fill(w, i, x, nil), mu), nil
	}
	if err := o.simulate(w, kn, x, u, next, w.data.DeltaV); err != nil {
		return solver.Evaluation{}, o.stageError(i, err)
	}
	copy(w.data.Forces, w.dyn.Forces())
	d := o.fill(w, i, x, u)
	return o.assess(d, mu), nil
}

func (o *OCP) Linearize(wi, i int, x dynamo.State, u dynamo.Control, mu float64, lq *solver.LQ) (solver.Evaluation, error) {
	w := o.workers[wi]
	kn := &o.grid.knots[i]
	lq.Q.Reset()
	if kn.Kind == stage.Terminal {
		d := o.fill(w, i, x, nil)
		o.cost.Linearize(d, lq.Q)
		return o.assess(d, mu), nil
	}

	if err := o.simulate(w, kn, x, u, w.next, w.dv0); err != nil {
		return solver.Evaluation{}, o.stageError(i, err)
	}
	copy(w.f0, w.dyn.Forces())

	d := w.data
	nx := len(x)
	copy(w.up, u)
	for j := 0; j < nx+len(u); j++ {
		copy(w.xp, x)
		var eps float64
		if j < nx {
			eps = o.fdStep * math.Max(1, math.Abs(x[j]))
			w.xp[j] += eps
		} else {
			eps = o.fdStep * math.Max(1, math.Abs(u[j-nx]))
			w.up[j-nx] += eps
		}
		err := o.simulate(w, kn, w.xp, w.up, w.nextP, w.dvP)
		if j >= nx {
			w.up[j-nx] = u[j-nx]
		}
		if err != nil {
			return solver.Evaluation{}, o.stageError(i, fmt.Errorf("linearize: %w", err))
		}
		o.column(lq, d, w, j, nx, eps)
	}

	copy(d.Forces, w.f0)
	copy(d.DeltaV, w.dv0)
	d = o.fill(w, i, x, u)
	o.cost.Linearize(d, lq.Q)
	o.constraints.BarrierGradientAt(d, mu, lq.Q)
	return o.assess(d, mu), nil
}

// column stores the finite-difference column j of the next-state, force
// and jump Jacobians.
func (o *OCP) column(lq *solver.LQ, d *stage.Data, w *worker, j, nx int, eps float64) {
	inv := 1 / eps
	dynJac, forceJac, col := lq.A, d.ForceX, j
	if j >= nx {
		dynJac, forceJac, col = lq.B, d.ForceU, j-nx
	}
	for r := 0; r < nx; r++ {
		dynJac.Set(r, col, (w.nextP[r]-w.next[r])*inv)
	}
	if forceJac != nil {
		for c, f := range w.dyn.Forces() {
			df := f.Sub(w.f0[c]).Mul(inv)
			forceJac.Set(3*c, col, df.X)
			forceJac.Set(3*c+1, col, df.Y)
			forceJac.Set(3*c+2, col, df.Z)
		}
	}
	if j < nx {
		for r := range w.dvP {
			d.DeltaVJac.Set(r, col, (w.dvP[r]-w.dv0[r])*inv)
		}
	}
}

// StaticGuess holds x0 at every knot with the torques that keep the
// configuration at rest on each knot's stance contacts.
func (o *OCP) StaticGuess(x0 dynamo.State) ([]dynamo.State, []dynamo.Control, error) {
	if err := dynamo.CheckDim("x0", len(x0), o.DimX()); err != nil {
		return nil, nil, err
	}
	knots := o.Knots()
	xs := make([]dynamo.State, len(knots))
	us := make([]dynamo.Control, len(knots)-1)
	q := x0[:o.model.DimQ()]
	for i, kn := range knots {
		xs[i] = x0.Clone()
		if kn.Kind == stage.Terminal {
			continue
		}
		u, _, err := StaticTorque(o.model, q, kn.Status.Active)
		if err != nil {
			return nil, nil, o.stageError(i, err)
		}
		us[i] = u
	}
	return xs, us, nil
}

// ContactForces evaluates the segment forces of every non-terminal knot
// along a trajectory.
func (o *OCP) ContactForces(xs []dynamo.State, us []dynamo.Control) ([][]r3.Vector, error) {
	o.Prepare(1)
	w := o.workers[0]
	out := make([][]r3.Vector, len(us))
	next := make(dynamo.State, o.DimX())
	dv := make([]float64, o.model.DimV())
	for i := range us {
		if err := o.simulate(w, &o.grid.knots[i], xs[i], us[i], next, dv); err != nil {
			return nil, o.stageError(i, err)
		}
		out[i] = append([]r3.Vector(nil), w.dyn.Forces()...)
	}
	return out, nil
}

var _ solver.Problem = (*OCP)(nil)
