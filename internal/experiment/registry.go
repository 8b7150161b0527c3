package experiment

import (
	"sort"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/control"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/estimator"
	"github.com/san-kum/legmpc/internal/metrics"
	"github.com/san-kum/legmpc/internal/reference"
	"github.com/san-kum/legmpc/internal/sim"
)

// PD gains of the standing baseline.
const (
	DefaultPDKp = 40.0
	DefaultPDKd = 1.0
)

type ControllerFactory func(e *Experiment) (sim.Controller, error)

type MetricFactory func(e *Experiment) (dynamo.Metric, error)

type Registry struct {
	controllers map[string]ControllerFactory
	metrics     map[string]MetricFactory
}

func NewRegistry() *Registry {
	return &Registry{
		controllers: make(map[string]ControllerFactory),
		metrics:     make(map[string]MetricFactory),
	}
}

// DefaultRegistry knows the mpc and pd controllers and every metric.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.controllers["mpc"] = func(e *Experiment) (sim.Controller, error) {
		return e.MPC, nil
	}
	r.controllers["pd"] = func(e *Experiment) (sim.Controller, error) {
		return control.NewPD(e.Model, e.Config.Cost.QStanding, DefaultPDKp, DefaultPDKd)
	}

	r.metrics["control_effort"] = constant(func() dynamo.Metric { return metrics.NewControlEffort() })
	r.metrics["energy"] = func(e *Experiment) (dynamo.Metric, error) { return metrics.NewEnergy(e.Model), nil }
	r.metrics["stability"] = constant(func() dynamo.Metric { return metrics.NewStability(0.5, 0.15) })
	r.metrics["com_tracking_rms"] = func(e *Experiment) (dynamo.Metric, error) {
		e.Model.ForwardKinematics(e.Config.Cost.QStanding)
		standing := e.Model.CoM()
		return metrics.NewCoMTracking(e.Model, reference.Func(func(t float64) r3.Vector {
			if e.UsesMPC() {
				if g := e.MPC.Generator(); g != nil {
					return g.CoM().Position(t)
				}
			}
			return standing
		})), nil
	}
	r.metrics["convergence_ratio"] = constant(func() dynamo.Metric { return metrics.NewConvergence() })
	r.metrics["solve_time_ms"] = constant(func() dynamo.Metric { return metrics.NewSolveTime() })
	r.metrics["contact_agreement"] = constant(func() dynamo.Metric { return metrics.NewContactAgreement(1) })
	r.metrics["estimated_contact_agreement"] = func(e *Experiment) (dynamo.Metric, error) {
		est, err := estimator.New(e.Model, estimator.DefaultSettings(len(e.Model.ContactFrames())))
		if err != nil {
			return nil, err
		}
		return metrics.NewEstimatedContact(est, e.Model.DimQ(), e.Controller.ContactStatus, 0.5), nil
	}
	return r
}

func constant(f func() dynamo.Metric) MetricFactory {
	return func(*Experiment) (dynamo.Metric, error) { return f(), nil }
}

func (r *Registry) RegisterController(name string, f ControllerFactory) { r.controllers[name] = f }
func (r *Registry) RegisterMetric(name string, f MetricFactory)         { r.metrics[name] = f }

func (r *Registry) Controller(name string) (ControllerFactory, error) {
	f, ok := r.controllers[name]
	if !ok {
		return nil, dynamo.Configf("unknown controller: %s", name)
	}
	return f, nil
}

func (r *Registry) Metric(name string, e *Experiment) (dynamo.Metric, error) {
	f, ok := r.metrics[name]
	if !ok {
		return nil, dynamo.Configf("unknown metric: %s", name)
	}
	return f(e)
}

func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }
func (r *Registry) MetricNames() []string     { return sortedKeys(r.metrics) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
