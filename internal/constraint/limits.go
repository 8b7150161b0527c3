package constraint

import (
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/stage"
)

// Bound selects the side of a box limit.
type Bound int

const (
	Lower Bound = iota
	Upper
)

func (b Bound) String() string {
	if b == Upper {
		return "upper"
	}
	return "lower"
}

type space int

const (
	spaceQ space = iota
	spaceV
	spaceU
)

// JointLimit is one side of a per-joint box limit on position, velocity
// or torque.
type JointLimit struct {
	name   string
	space  space
	bound  Bound
	offset int
	limit  []float64
}

func newJointLimit(name string, sp space, b Bound, offset int, limit []float64) (*JointLimit, error) {
	if len(limit) == 0 {
		return nil, dynamo.Configf("%s: model reports no limits", name)
	}
	return &JointLimit{
		name:   name,
		space:  sp,
		bound:  b,
		offset: offset,
		limit:  append([]float64(nil), limit...),
	}, nil
}

func NewJointPositionLimit(m robot.Model, b Bound) (*JointLimit, error) {
	lim := m.Limits()
	qi, _ := robot.JointOffsets(m)
	values := lim.QMin
	if b == Upper {
		values = lim.QMax
	}
	return newJointLimit("joint_position_"+b.String(), spaceQ, b, qi, values)
}

func NewJointVelocityLimit(m robot.Model, b Bound) (*JointLimit, error) {
	lim := m.Limits()
	_, vi := robot.JointOffsets(m)
	return newJointLimit("joint_velocity_"+b.String(), spaceV, b, m.DimQ()+vi, signed(lim.VMax, b))
}

func NewJointTorqueLimit(m robot.Model, b Bound) (*JointLimit, error) {
	return newJointLimit("joint_torque_"+b.String(), spaceU, b, 0, signed(m.Limits().UMax, b))
}

// signed turns symmetric magnitudes into bounds of side b.
func signed(mag []float64, b Bound) []float64 {
	out := make([]float64, len(mag))
	for i, m := range mag {
		if b == Lower {
			out[i] = -m
		} else {
			out[i] = m
		}
	}
	return out
}

func (j *JointLimit) Name() string { return j.name }

func (j *JointLimit) value(d *stage.Data, i int) (g, sign float64) {
	var x float64
	if j.space == spaceU {
		x = d.U[j.offset+i]
	} else {
		x = d.X[j.offset+i]
	}
	if j.bound == Lower {
		return j.limit[i] - x, -1
	}
	return x - j.limit[i], 1
}

func (j *JointLimit) Values(d *stage.Data, dst []float64) []float64 {
	for i := range j.limit {
		g, _ := j.value(d, i)
		dst = append(dst, g)
	}
	return dst
}

func (j *JointLimit) Linearize(d *stage.Data, b Barrier, q *stage.Quadratic) float64 {
	sum := 0.0
	for i := range j.limit {
		g, sign := j.value(d, i)
		sum += b.Value(g)
		d1, d2 := b.Derivatives(g)
		if j.space == spaceU {
			q.AddDiagU(j.offset+i, d1*sign, d2)
		} else {
			q.AddDiagX(j.offset+i, d1*sign, d2)
		}
	}
	return sum
}

// AddJointLimits appends the six box limits of the model to s.
func AddJointLimits(s *Set, m robot.Model) error {
	builders := []func(robot.Model, Bound) (*JointLimit, error){
		NewJointPositionLimit,
		NewJointVelocityLimit,
		NewJointTorqueLimit,
	}
	for _, build := range builders {
		for _, b := range []Bound{Lower, Upper} {
			c, err := build(m, b)
			if err != nil {
				return err
			}
			s.Add(c)
		}
	}
	return nil
}
