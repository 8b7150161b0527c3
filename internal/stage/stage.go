// Package stage holds the per-knot data shared by the cost terms, the
// constraint set and the solver: the evaluation point, its kinematics,
// the contact forces of the bound dynamics and the quadratic model
// accumulated at the knot.
package stage

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
)

// Kind is the role of a knot in the horizon.
type Kind int

const (
	Regular Kind = iota
	Impulse
	Terminal
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Impulse:
		return "impulse"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// ContactStatus is the activity of every contact frame over one segment,
// indexed in the model's contact frame order.
type ContactStatus struct {
	Active []bool
	// Mu is the friction coefficient per contact.
	Mu []float64
	// Anchors are the stance footholds used by the Baumgarte term.
	Anchors []r3.Vector
}

func NewContactStatus(n int) ContactStatus {
	return ContactStatus{
		Active:  make([]bool, n),
		Mu:      make([]float64, n),
		Anchors: make([]r3.Vector, n),
	}
}

func (c ContactStatus) NumActive() int {
	n := 0
	for _, a := range c.Active {
		if a {
			n++
		}
	}
	return n
}

func (c ContactStatus) Clone() ContactStatus {
	return ContactStatus{
		Active:  append([]bool(nil), c.Active...),
		Mu:      append([]float64(nil), c.Mu...),
		Anchors: append([]r3.Vector(nil), c.Anchors...),
	}
}

// SameActive reports whether both statuses activate the same contacts.
func (c ContactStatus) SameActive(o ContactStatus) bool {
	if len(c.Active) != len(o.Active) {
		return false
	}
	for i := range c.Active {
		if c.Active[i] != o.Active[i] {
			return false
		}
	}
	return true
}

// Data is the evaluation point of one knot. At impulse knots X is the
// state before the velocity jump.
type Data struct {
	Index int
	Kind  Kind
	T     float64
	Dt    float64

	X dynamo.State
	U dynamo.Control
	Q []float64
	V []float64

	Contacts ContactStatus

	// Model carries a kinematic cache evaluated at Q. It is only valid
	// during the evaluation call that received this Data.
	Model robot.Model
	// Jac is 3 x nv scratch space for frame and CoM Jacobians.
	Jac *mat.Dense

	// Forces are the contact forces of the segment dynamics, zero for
	// inactive contacts. ForceX and ForceU are their 3*nc x nx and
	// 3*nc x nu Jacobians, filled before linearization.
	Forces []r3.Vector
	ForceX *mat.Dense
	ForceU *mat.Dense

	// DeltaV is the velocity jump applied at an impulse knot and
	// DeltaVJac its nv x nx Jacobian.
	DeltaV    []float64
	DeltaVJac *mat.Dense
}

// NewData allocates a Data for a model with nc contacts.
func NewData(m robot.Model) *Data {
	nq, nv, nu := m.DimQ(), m.DimV(), m.DimU()
	nc := len(m.ContactFrames())
	nx := nq + nv
	d := &Data{
		X:         make(dynamo.State, nx),
		U:         make(dynamo.Control, nu),
		Contacts:  NewContactStatus(nc),
		Forces:    make([]r3.Vector, nc),
		DeltaV:    make([]float64, nv),
		DeltaVJac: mat.NewDense(nv, nx, nil),
		Jac:       mat.NewDense(3, nv, nil),
	}
	if nc > 0 {
		d.ForceX = mat.NewDense(3*nc, nx, nil)
		d.ForceU = mat.NewDense(3*nc, nu, nil)
	}
	d.Q, d.V = d.X.Split(nq)
	return d
}

// SetPoint copies x and u into the data.
func (d *Data) SetPoint(x dynamo.State, u dynamo.Control) {
	copy(d.X, x)
	copy(d.U, u)
}

// ForceRow returns row 3*c+k of the force Jacobians.
func (d *Data) ForceRow(c, k int) (rowX, rowU []float64) {
	r := 3*c + k
	return d.ForceX.RawRowView(r), d.ForceU.RawRowView(r)
}

// ForceComponent returns component k of the force at contact c.
func (d *Data) ForceComponent(c, k int) float64 {
	f := d.Forces[c]
	switch k {
	case 0:
		return f.X
	case 1:
		return f.Y
	default:
		return f.Z
	}
}
