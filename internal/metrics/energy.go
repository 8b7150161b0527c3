package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
)

// Energy is the mean mechanical energy of the robot: kinetic energy
// from the mass matrix plus the gravitational potential of the CoM.
type Energy struct {
	name    string
	model   robot.Model
	nq      int
	mass    *mat.Dense
	vel     *mat.VecDense
	h       []float64
	zero    []float64
	samples int
	total   float64
}

func NewEnergy(m robot.Model) *Energy {
	nv := m.DimV()
	return &Energy{
		name:  "energy",
		model: m.Clone(),
		nq:    m.DimQ(),
		mass:  mat.NewDense(nv, nv, nil),
		vel:   mat.NewVecDense(nv, nil),
		h:     make([]float64, nv),
		zero:  make([]float64, nv),
	}
}

func (e *Energy) Name() string { return e.name }

// Of returns the mechanical energy of x.
func (e *Energy) Of(x dynamo.State) float64 {
	q, v := x.Split(e.nq)
	e.model.MassMatrix(q, e.mass)
	for i, vi := range v {
		e.vel.SetVec(i, vi)
	}
	ke := 0.5 * mat.Inner(e.vel, e.mass, e.vel)

	var pe float64
	if e.model.BaseJoint() == robot.FloatingBase {
		// At rest the generalized force on the base height is the weight.
		e.model.NonlinearEffects(q, e.zero, e.h)
		e.model.ForwardKinematics(q)
		pe = e.h[2] * e.model.CoM().Z
	}
	return ke + pe
}

func (e *Energy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	e.total += e.Of(x)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *Energy) Reset() {
	e.total = 0
	e.samples = 0
}

// EnergyDrift is the largest relative change of the mechanical energy
// from its first sample.
type EnergyDrift struct {
	name     string
	energy   *Energy
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(m robot.Model) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		energy: NewEnergy(m),
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(x dynamo.State, u dynamo.Control, t float64) {
	energy := e.energy.Of(x)
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++
	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
