package integrators

import (
	"testing"

	"github.com/san-kum/legmpc/internal/dynamo"
)

func benchmarkIntegrator(b *testing.B, integ Integrator) {
	x := dynamo.State{1.0, 0.0}
	next := make(dynamo.State, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = integ.Step(oscillator{}, x, nil, 0, 0.01, next)
		x, next = next, x
	}
}

func BenchmarkSemiImplicitEuler(b *testing.B) { benchmarkIntegrator(b, NewSemiImplicitEuler()) }
func BenchmarkEuler(b *testing.B)             { benchmarkIntegrator(b, NewEuler()) }
func BenchmarkRK4(b *testing.B)               { benchmarkIntegrator(b, NewRK4()) }
