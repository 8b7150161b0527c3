package robot

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// BaseJointType selects how the base is attached to the world.
type BaseJointType int

const (
	FloatingBase BaseJointType = iota
	FixedBase
)

func (b BaseJointType) String() string {
	switch b {
	case FloatingBase:
		return "floating"
	case FixedBase:
		return "fixed"
	default:
		return "unknown"
	}
}

// ContactType is the contact model of a contact frame.
type ContactType int

const (
	PointContact ContactType = iota
	SurfaceContact
)

func (c ContactType) String() string {
	switch c {
	case PointContact:
		return "point"
	case SurfaceContact:
		return "surface"
	default:
		return "unknown"
	}
}

// ParseBaseJoint is the inverse of BaseJointType.String.
func ParseBaseJoint(s string) (BaseJointType, error) {
	switch s {
	case "floating":
		return FloatingBase, nil
	case "fixed":
		return FixedBase, nil
	}
	return 0, dynamo.Configf("unknown base joint %q", s)
}

func ParseContactTypes(names []string) ([]ContactType, error) {
	types := make([]ContactType, len(names))
	for i, n := range names {
		switch n {
		case "point":
			types[i] = PointContact
		case "surface":
			types[i] = SurfaceContact
		default:
			return nil, dynamo.Configf("unknown contact type %q", n)
		}
	}
	return types, nil
}

// FrameID identifies an operational frame of a model.
type FrameID int

// Limits are the per-joint box limits. All slices have DimU entries and
// refer to the last DimU coordinates of q and v.
type Limits struct {
	QMin []float64
	QMax []float64
	VMax []float64
	UMax []float64
}

// Model is the rigid-body interface consumed by the optimal control
// problem. Frame and CoM queries are consistent with the last
// ForwardKinematics call. A Model is not safe for concurrent use; Clone
// gives every worker its own kinematic cache.
type Model interface {
	DimQ() int
	DimV() int
	DimU() int
	BaseJoint() BaseJointType

	ContactFrames() []FrameID
	ContactTypes() []ContactType
	FrameName(id FrameID) string
	BaumgarteTimeStep() float64

	ForwardKinematics(q []float64)
	FramePosition(id FrameID) r3.Vector
	// FrameJacobian writes the 3 x DimV translational Jacobian into jac.
	FrameJacobian(id FrameID, jac *mat.Dense)
	// FrameBias returns the velocity-product acceleration Jdot*v.
	FrameBias(id FrameID, v []float64) r3.Vector
	CoM() r3.Vector
	CoMJacobian(jac *mat.Dense)

	MassMatrix(q []float64, m *mat.Dense)
	NonlinearEffects(q, v []float64, h []float64)
	Limits() Limits

	Clone() Model
}

// LegModel is a Model whose contact frames each sit at the end of a
// three-joint leg.
type LegModel interface {
	Model
	LegJoints(id FrameID) int
}
