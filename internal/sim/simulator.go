package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/legmpc/internal/control"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/ocp"
)

// Simulator closes the loop between a controller and the plant: the
// controller is ticked every control period and the plant integrates
// the tick's feedback law in between.
type Simulator struct {
	controller Controller
	plant      *ocp.Plant
	nq         int
	limit      []float64
	metrics    []dynamo.Metric
	observers  []Observer
	logger     *zap.Logger
}

type Option func(*Simulator)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithTorqueLimit saturates the applied torques.
func WithTorqueLimit(limit []float64) Option {
	return func(s *Simulator) { s.limit = limit }
}

func New(controller Controller, plant *ocp.Plant, nq int, opts ...Option) *Simulator {
	s := &Simulator{
		controller: controller,
		plant:      plant,
		nq:         nq,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]Observer, 0),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)    { s.observers = append(s.observers, o) }

func (s *Simulator) validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) {
		return dynamo.Configf("dt must be positive, got %f", cfg.Dt)
	}
	if !(cfg.Duration > 0) {
		return dynamo.Configf("duration must be positive, got %f", cfg.Duration)
	}
	if !(cfg.ControlPeriod >= cfg.Dt) {
		return dynamo.Configf("control period %f must be at least dt %f", cfg.ControlPeriod, cfg.Dt)
	}
	return nil
}

// Run simulates from x0 at time t0. The controller must already be
// initialized at t0.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, t0 float64, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		States:   make([]dynamo.State, 0, steps+1),
		Controls: make([]dynamo.Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}
	result.States = append(result.States, x0.Clone())
	result.Times = append(result.Times, t0)

	err := s.loop(ctx, x0, t0, steps, cfg, func(x dynamo.State, u dynamo.Control, t float64, tick *Tick) bool {
		if tick != nil {
			result.Ticks = append(result.Ticks, *tick)
			return true
		}
		result.StepsTaken++
		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Times = append(result.Times, t)
		return true
	})
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	var se SimError
	if errors.As(err, &se) {
		result.Errors = append(result.Errors, se)
		return result, nil
	}
	return result, err
}

// RunWithCallback streams the run to callback. A tick is reported with a
// non-nil tick; plant steps with nil. Returning false stops the run.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 dynamo.State, t0 float64, cfg Config,
	callback func(x dynamo.State, u dynamo.Control, t float64, tick *Tick) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}
	steps := int(math.Round(cfg.Duration / cfg.Dt))
	return s.loop(ctx, x0, t0, steps, cfg, callback)
}

func (s *Simulator) loop(ctx context.Context, x0 dynamo.State, t0 float64, steps int, cfg Config,
	callback func(dynamo.State, dynamo.Control, float64, *Tick) bool) error {
	x := x0.Clone()
	next := make(dynamo.State, len(x))
	ticksPer := max(1, int(math.Round(cfg.ControlPeriod/cfg.Dt)))
	var law *control.Feedback
	var active []bool

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t := t0 + float64(i)*cfg.Dt

		if i%ticksPer == 0 {
			q, v := x.Split(s.nq)
			cmd, err := s.controller.Update(ctx, t, q, v)
			if err != nil {
				return fmt.Errorf("controller update at t=%.4f: %w", t, err)
			}
			law = control.NewFeedback(cmd, s.limit)
			active = s.controller.ContactStatus(t)
			tick := Tick{
				Time:        t,
				State:       x.Clone(),
				Command:     cmd,
				Contacts:    append([]bool(nil), active...),
				Forces:      append(s.plant.Forces()[:0:0], s.plant.Forces()...),
				Diagnostics: cmd.Diagnostics,
			}
			s.notifyTick(tick)
			if !callback(x, nil, t, &tick) {
				return nil
			}
			if ce := s.logger.Check(zap.DebugLevel, "tick"); ce != nil {
				ce.Write(zap.Float64("t", t), zap.Stringer("diagnostics", cmd.Diagnostics))
			}
		} else {
			active = s.controller.ContactStatus(t)
		}

		u := law.Compute(x, t)
		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		if err := s.plant.Step(x, u, t, cfg.Dt, active, next); err != nil {
			return SimError{Time: t, Step: i, Message: err.Error()}
		}
		if cfg.ValidateState && !next.IsValid() {
			return SimError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"}
		}
		x, next = next, x
		if !callback(x, u, t+cfg.Dt, nil) {
			return nil
		}
	}
	return nil
}

func (s *Simulator) notifyTick(tick Tick) {
	for _, m := range s.metrics {
		if o, ok := m.(TickObserver); ok {
			o.OnTick(tick)
		}
	}
	for _, obs := range s.observers {
		if o, ok := obs.(TickObserver); ok {
			o.OnTick(tick)
		}
	}
}
