package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// SecondOrder is a system with state x = [q; v] and qdot = v.
type SecondOrder interface {
	DimQ() int
	// Acceleration writes the generalized acceleration at (x, u, t) into a.
	Acceleration(x dynamo.State, u dynamo.Control, t float64, a []float64) error
}

// Integrator advances a SecondOrder system by one step. Integrators keep
// scratch buffers and are not safe for concurrent use.
type Integrator interface {
	Name() string
	Step(sys SecondOrder, x dynamo.State, u dynamo.Control, t, dt float64, next dynamo.State) error
}

var registry = map[string]func() Integrator{
	"semi-implicit-euler": func() Integrator { return NewSemiImplicitEuler() },
	"euler":               func() Integrator { return NewEuler() },
	"rk4":                 func() Integrator { return NewRK4() },
}

// New returns a fresh integrator by name.
func New(name string) (Integrator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator %q (have %v)", dynamo.ErrConfig, name, Names())
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
