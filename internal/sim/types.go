package sim

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/mpc"
	"github.com/san-kum/legmpc/internal/solver"
)

// Controller is ticked once per control period. *mpc.MPC and
// *control.PD implement it.
type Controller interface {
	Update(ctx context.Context, t float64, q, v []float64) (mpc.Command, error)
	// ContactStatus is the contact schedule the plant follows.
	ContactStatus(t float64) []bool
}

// Observer sees every plant step.
type Observer interface {
	OnStep(x dynamo.State, u dynamo.Control, t float64)
}

// TickObserver sees every controller tick. Metrics and observers that
// implement it are notified after each Update.
type TickObserver interface {
	OnTick(tick Tick)
}

type Config struct {
	Duration      float64
	ControlPeriod float64
	Dt            float64
	// ValidateState stops the run on a NaN or Inf state.
	ValidateState bool
}

// Tick records one controller update.
type Tick struct {
	Time        float64
	State       dynamo.State
	Command     mpc.Command
	Contacts    []bool
	Forces      []r3.Vector
	Diagnostics solver.Diagnostics
}

type Result struct {
	States     []dynamo.State
	Controls   []dynamo.Control
	Times      []float64
	Ticks      []Tick
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("sim error at t=%.4f (step %d): %s", e.Time, e.Step, e.Message)
}
