// Package solver implements a primal-dual interior point Riccati solver
// for discretized optimal control problems. Each iteration linearizes all
// knots in parallel, runs a backward Riccati recursion for the Newton
// step and feedback gains, and searches step sizes in parallel with
// closed-loop rollouts. Inequality constraints enter as a relaxed log
// barrier whose coefficient is continued toward its minimum.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/stage"
)

// Solver is reused across solves of a problem whose knot count may change
// up to the problem's capacity. A Solver is not safe for concurrent use.
type Solver struct {
	problem Problem
	pool    *dynamo.Pool
	logger  *zap.Logger

	nx, nu int
	lq     []*LQ
	evals  []Evaluation
	ric    *riccati
	trials []*trajectory
	base   *trajectory
}

type Option func(*Solver)

func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// New prepares a solver with the given number of workers.
func New(p Problem, workers int, opts ...Option) (*Solver, error) {
	if p == nil {
		return nil, dynamo.Configf("solver needs a problem")
	}
	if workers < 1 {
		return nil, dynamo.Configf("workers must be positive, got %d", workers)
	}
	s := &Solver{
		problem: p,
		pool:    dynamo.NewPool(workers),
		logger:  zap.NewNop(),
		nx:      p.DimX(),
		nu:      p.DimU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	p.Prepare(workers)

	capacity := p.Capacity()
	s.lq = make([]*LQ, capacity)
	for i := range s.lq {
		s.lq[i] = NewLQ(s.nx, s.nu)
	}
	s.evals = make([]Evaluation, capacity)
	s.ric = newRiccati(s.nx, s.nu, capacity)
	s.base = newTrajectory(s.nx, s.nu, capacity)
	return s, nil
}

func (s *Solver) Problem() Problem { return s.problem }
func (s *Solver) Workers() int     { return s.pool.Size() }

func (s *Solver) trialBuffers(n int) []*trajectory {
	for len(s.trials) < n {
		s.trials = append(s.trials, newTrajectory(s.nx, s.nu, s.problem.Capacity()))
	}
	return s.trials[:n]
}

// fit resizes sol to the current knots of the problem, holding the last
// state and control where the grid grew.
func (s *Solver) fit(sol *Solution) {
	n := s.problem.NumKnots()
	if len(sol.Times) != n {
		sol.Times = make([]float64, n)
	}
	if len(sol.Kinds) != n {
		sol.Kinds = make([]stage.Kind, n)
	}
	for i := 0; i < n; i++ {
		sol.Times[i] = s.problem.KnotTime(i)
		sol.Kinds[i] = s.problem.KnotKind(i)
	}
	x0 := s.problem.InitialState()
	for len(sol.X) < n {
		last := x0
		if len(sol.X) > 0 {
			last = sol.X[len(sol.X)-1]
		}
		sol.X = append(sol.X, last.Clone())
	}
	sol.X = sol.X[:n]
	for i := range sol.X {
		if len(sol.X[i]) != s.nx {
			sol.X[i] = x0.Clone()
		}
	}
	for len(sol.U) < n-1 {
		last := make(dynamo.Control, s.nu)
		if len(sol.U) > 0 {
			last = sol.U[len(sol.U)-1].Clone()
		}
		sol.U = append(sol.U, last)
	}
	sol.U = sol.U[:n-1]
	for i := range sol.U {
		if len(sol.U[i]) != s.nu {
			sol.U[i] = make(dynamo.Control, s.nu)
		}
	}
	if len(sol.K) > n-1 {
		sol.K = sol.K[:n-1]
	}
	for i, k := range sol.K {
		if k == nil {
			continue
		}
		if r, c := k.Dims(); r != max(s.nu, 1) || c != s.nx {
			sol.K[i] = nil
		}
	}
	if len(sol.Lambda) != n {
		sol.Lambda = make([]dynamo.State, n)
	}
	for i := range sol.Lambda {
		if len(sol.Lambda[i]) != s.nx {
			sol.Lambda[i] = make(dynamo.State, s.nx)
		}
	}
}

// gains returns the stored feedback gains padded with nil to n-1 knots.
func gains(sol *Solution, n int) []*mat.Dense {
	if len(sol.K) == 0 {
		return nil
	}
	K := make([]*mat.Dense, n-1)
	copy(K, sol.K)
	return K
}

// Solve improves sol in place for at most options.MaxIter iterations.
// Solve starts from a closed-loop rollout of sol from the problem's
// initial state. It never fails: non-convergence, an expired context or
// deadline and numerical breakdown are reported in the diagnostics,
// which are also stored in sol.
func (s *Solver) Solve(ctx context.Context, sol *Solution, options Options) Diagnostics {
	start := time.Now()
	diag := s.solve(ctx, sol, options, start)
	diag.Elapsed = time.Since(start)
	sol.Diagnostics = diag
	s.logger.Debug("solve finished",
		zap.Int("iterations", diag.Iterations),
		zap.Float64("kkt", diag.KKTError),
		zap.Float64("cost", diag.Cost),
		zap.Bool("converged", diag.Converged),
		zap.String("failure", diag.Failure),
		zap.Duration("elapsed", diag.Elapsed))
	return diag
}

func (s *Solver) solve(ctx context.Context, sol *Solution, options Options, start time.Time) Diagnostics {
	var diag Diagnostics
	if err := options.Validate(); err != nil {
		diag.Failure = err.Error()
		return diag
	}
	p := s.problem
	n := p.NumKnots()
	if n < 2 {
		diag.Failure = fmt.Sprintf("problem has %d knots", n)
		return diag
	}
	s.fit(sol)

	mu := options.InitialBarrier
	if sol.Barrier > 0 {
		mu = sol.Barrier
	}
	mu = math.Max(mu, options.MinBarrier)
	rho0 := options.Regularization
	rho := rho0
	diag.Barrier = mu
	diag.Regularization = rho

	expired := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return options.Deadline > 0 && time.Since(start) >= options.Deadline
	}

	s.base.rollout(p, 0, sol, nil, gains(sol, n), 0, mu)
	if !s.base.merit.ok {
		// The feedback rollout diverged; fall back to the open-loop warm start.
		s.base.rollout(p, 0, sol, nil, nil, 0, mu)
		if !s.base.merit.ok {
			diag.Failure = "warm start rollout is not finite"
			sol.Barrier = mu
			return diag
		}
	}
	s.base.store(sol, n)
	current := s.base.merit

	steps := options.LineSearch.steps()
	for iter := 0; ; iter++ {
		if expired() {
			break
		}
		err := s.pool.Run(n, func(w, i int) error {
			var u dynamo.Control
			if i < n-1 {
				u = sol.U[i]
			}
			e, err := p.Linearize(w, i, sol.X[i], u, mu, s.lq[i])
			s.evals[i] = e
			return err
		})
		if err != nil {
			diag.Failure = err.Error()
			break
		}
		current = merit{feasible: true, ok: true}
		for i := 0; i < n; i++ {
			current.add(s.evals[i])
		}
		diag.KKTError = costate(s.lq, n, sol.Lambda)
		diag.Cost = current.cost
		diag.Merit = current.total()
		diag.Feasible = current.feasible
		diag.Barrier = mu
		if diag.KKTError < options.KKTTol {
			diag.Converged = true
			break
		}
		if iter >= options.MaxIter || expired() {
			break
		}
		diag.Iterations++

		err = s.ric.backward(s.lq, n, rho)
		if errors.Is(err, errNotPositiveDefinite) {
			rho = math.Max(10*rho, 1e-8)
			err = s.ric.backward(s.lq, n, rho)
		}
		diag.Regularization = rho
		if err != nil {
			diag.Failure = "riccati: " + err.Error()
			break
		}

		best := s.search(sol, steps, current, mu, options.LineSearch.Armijo)
		if best == nil {
			diag.StepSize = 0
			rho = math.Max(10*rho, 1e-8)
		} else {
			best.store(sol, n)
			s.storeGains(sol, n)
			current = best.merit
			diag.StepSize = best.alpha
			diag.Cost = current.cost
			diag.Merit = current.total()
			diag.Feasible = current.feasible
			rho = math.Max(rho0, rho/10)
		}
		diag.Regularization = rho

		s.logger.Debug("solver iteration",
			zap.Int("iter", diag.Iterations),
			zap.Float64("kkt", diag.KKTError),
			zap.Float64("merit", diag.Merit),
			zap.Float64("step", diag.StepSize),
			zap.Float64("mu", mu),
			zap.Float64("rho", rho))

		if diag.KKTError < math.Max(options.KKTTol, 10*mu) && mu > options.MinBarrier {
			mu = math.Max(options.MinBarrier, mu*options.BarrierDecrease)
		}
	}
	sol.Barrier = mu
	diag.Barrier = mu
	return diag
}

// search rolls out every candidate step size in parallel and returns the
// largest accepted one, or nil.
func (s *Solver) search(sol *Solution, steps []float64, current merit, mu, armijo float64) *trajectory {
	p := s.problem
	n := p.NumKnots()
	trials := s.trialBuffers(len(steps))
	K := s.ric.K[:n-1]
	_ = s.pool.Run(len(steps), func(w, j int) error {
		trials[j].rollout(p, w, sol, s.ric.k[:n-1], K, steps[j], mu)
		return nil
	})
	for j, t := range trials {
		if t.accept(current, s.ric.expected(steps[j]), armijo) {
			return t
		}
	}
	return nil
}

func (s *Solver) storeGains(sol *Solution, n int) {
	if len(sol.K) != n-1 {
		sol.K = make([]*mat.Dense, n-1)
	}
	for i := 0; i < n-1; i++ {
		if sol.K[i] == nil {
			sol.K[i] = mat.NewDense(max(s.nu, 1), s.nx, nil)
		}
		sol.K[i].Copy(s.ric.K[i])
	}
}

// Cost evaluates the merit of sol without changing it.
func (s *Solver) Cost(sol *Solution, mu float64) (cost, barrier float64, feasible bool) {
	s.fit(sol)
	s.base.rollout(s.problem, 0, sol, nil, nil, 0, mu)
	m := s.base.merit
	return m.cost, m.barrier, m.feasible && m.ok
}

// Residual is the norm of the state mismatch between consecutive knots
// of sol and the problem dynamics.
func (s *Solver) Residual(sol *Solution) float64 {
	p := s.problem
	n := p.NumKnots()
	if len(sol.X) != n || len(sol.U) != n-1 {
		return math.Inf(1)
	}
	next := make([]float64, s.nx)
	sum := 0.0
	for i := 0; i < n-1; i++ {
		if _, err := p.Stage(0, i, sol.X[i], sol.U[i], sol.Barrier, next); err != nil {
			return math.Inf(1)
		}
		sum += floats.Distance(next, sol.X[i+1], 2)
	}
	return sum
}
