package robot

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
)

const (
	jointsPerLeg = 3
	biasStep     = 1e-6
)

type leg struct {
	name string
	foot string
	hip  r3.Vector
	side float64
}

// Quadruped is a lumped-inertia floating-base quadruped. The base pose is
// parameterized by position and roll-pitch-yaw angles, so DimQ equals
// DimV and the generalized velocity is the time derivative of q.
type Quadruped struct {
	desc      *Description
	base      BaseJointType
	legs      []leg
	frames    []FrameID
	types     []ContactType
	baumgarte float64
	nb        int
	limits    Limits

	q       []float64
	pos     []r3.Vector
	jac     []*mat.Dense
	scratch []float64
	biasJac *mat.Dense
}

// Load reads a description file and builds the model. An empty path
// selects the embedded description.
func Load(path string, base BaseJointType, contactFrames []string, contactTypes []ContactType, baumgarte float64) (*Quadruped, error) {
	desc, err := LoadDescription(path)
	if err != nil {
		return nil, err
	}
	return NewQuadruped(desc, base, contactFrames, contactTypes, baumgarte)
}

func NewQuadruped(desc *Description, base BaseJointType, contactFrames []string, contactTypes []ContactType, baumgarte float64) (*Quadruped, error) {
	if desc == nil {
		desc = DefaultDescription()
	} else if err := desc.Validate(); err != nil {
		return nil, err
	}
	if base != FloatingBase && base != FixedBase {
		return nil, dynamo.Configf("unknown base joint type %d", base)
	}
	if err := dynamo.CheckDim("contact types", len(contactTypes), len(contactFrames)); err != nil {
		return nil, err
	}
	if baumgarte <= 0 {
		return nil, dynamo.Configf("baumgarte time step must be positive, got %g", baumgarte)
	}

	r := &Quadruped{
		desc:      desc,
		base:      base,
		baumgarte: baumgarte,
		types:     append([]ContactType(nil), contactTypes...),
	}
	if base == FloatingBase {
		r.nb = 6
	}
	for _, l := range desc.Legs {
		r.legs = append(r.legs, leg{
			name: l.Name,
			foot: l.Foot,
			hip:  r3.Vector{X: l.Hip[0], Y: l.Hip[1], Z: l.Hip[2]},
			side: l.Side,
		})
	}
	for _, name := range contactFrames {
		id, err := r.FrameByName(name)
		if err != nil {
			return nil, err
		}
		r.frames = append(r.frames, id)
	}

	lim := desc.Limits
	nu := r.DimU()
	r.limits = Limits{
		QMin: make([]float64, nu),
		QMax: make([]float64, nu),
		VMax: make([]float64, nu),
		UMax: make([]float64, nu),
	}
	for i := 0; i < len(r.legs); i++ {
		for k, rg := range [][]float64{lim.Abduction, lim.Hip, lim.Knee} {
			j := jointsPerLeg*i + k
			r.limits.QMin[j] = rg[0]
			r.limits.QMax[j] = rg[1]
			r.limits.VMax[j] = lim.Velocity
			r.limits.UMax[j] = lim.Torque
		}
	}
	r.allocate()
	return r, nil
}

func (r *Quadruped) allocate() {
	nv := r.DimV()
	r.q = make([]float64, r.DimQ())
	r.scratch = make([]float64, r.DimQ())
	r.pos = make([]r3.Vector, len(r.legs))
	r.jac = make([]*mat.Dense, len(r.legs))
	for i := range r.jac {
		r.jac[i] = mat.NewDense(3, nv, nil)
	}
	r.biasJac = mat.NewDense(3, nv, nil)
}

// FrameByName resolves a foot frame name.
func (r *Quadruped) FrameByName(name string) (FrameID, error) {
	for i, l := range r.legs {
		if l.foot == name {
			return FrameID(i), nil
		}
	}
	return 0, dynamo.Configf("unknown contact frame %q", name)
}

func (r *Quadruped) Description() *Description { return r.desc }

func (r *Quadruped) DimQ() int { return r.nb + jointsPerLeg*len(r.legs) }
func (r *Quadruped) DimV() int { return r.DimQ() }
func (r *Quadruped) DimU() int { return jointsPerLeg * len(r.legs) }

func (r *Quadruped) BaseJoint() BaseJointType { return r.base }
func (r *Quadruped) ContactFrames() []FrameID { return r.frames }
func (r *Quadruped) ContactTypes() []ContactType { return r.types }
func (r *Quadruped) BaumgarteTimeStep() float64 { return r.baumgarte }
func (r *Quadruped) Limits() Limits { return r.limits }
func (r *Quadruped) FramePosition(id FrameID) r3.Vector { return r.pos[id] }

func (r *Quadruped) FrameName(id FrameID) string {
	if int(id) < 0 || int(id) >= len(r.legs) {
		return ""
	}
	return r.legs[id].foot
}

func (r *Quadruped) ForwardKinematics(q []float64) {
	copy(r.q, q)
	for i := range r.legs {
		r.pos[i] = r.footKinematics(r.q, i, r.jac[i])
	}
}

func (r *Quadruped) FrameJacobian(id FrameID, jac *mat.Dense) {
	jac.Copy(r.jac[id])
}

// FrameBias differentiates the Jacobian numerically along v.
func (r *Quadruped) FrameBias(id FrameID, v []float64) r3.Vector {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return r3.Vector{}
	}
	eps := biasStep / math.Max(1, math.Sqrt(norm))
	for i := range r.q {
		r.scratch[i] = r.q[i] + eps*v[i]
	}
	r.footKinematics(r.scratch, int(id), r.biasJac)

	var out [3]float64
	j0 := r.jac[id]
	for row := 0; row < 3; row++ {
		sum := 0.0
		for c, vc := range v {
			sum += (r.biasJac.At(row, c) - j0.At(row, c)) * vc
		}
		out[row] = sum / eps
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}

// CoM is the base position; the legs are massless.
func (r *Quadruped) CoM() r3.Vector {
	p, _, _, _ := r.basePose(r.q)
	return p
}

func (r *Quadruped) CoMJacobian(jac *mat.Dense) {
	jac.Zero()
	if r.base == FloatingBase {
		for i := 0; i < 3; i++ {
			jac.Set(i, i, 1)
		}
	}
}

func (r *Quadruped) MassMatrix(q []float64, m *mat.Dense) {
	m.Zero()
	if r.base == FloatingBase {
		for i := 0; i < 3; i++ {
			m.Set(i, i, r.desc.Mass)
			m.Set(3+i, 3+i, r.desc.BaseInertia[i])
		}
	}
	for i := r.nb; i < r.DimV(); i++ {
		m.Set(i, i, r.desc.JointInertia)
	}
}

func (r *Quadruped) NonlinearEffects(q, v []float64, h []float64) {
	for i := range h {
		h[i] = 0
	}
	if r.base == FloatingBase {
		h[2] = r.desc.Mass * r.desc.Gravity
	}
	for i := r.nb; i < r.DimV(); i++ {
		h[i] = r.desc.JointDamping * v[i]
	}
}

func (r *Quadruped) Clone() Model {
	c := *r
	c.allocate()
	copy(c.q, r.q)
	copy(c.pos, r.pos)
	for i := range c.jac {
		c.jac[i].Copy(r.jac[i])
	}
	return &c
}

func (r *Quadruped) basePose(q []float64) (p r3.Vector, roll, pitch, yaw float64) {
	pose := q
	if r.base == FixedBase {
		pose = r.desc.FixedBasePose
		if pose == nil {
			return r3.Vector{}, 0, 0, 0
		}
	}
	return r3.Vector{X: pose[0], Y: pose[1], Z: pose[2]}, pose[3], pose[4], pose[5]
}

// footKinematics returns the world position of the foot of leg l at q and
// writes the foot Jacobian into jac.
func (r *Quadruped) footKinematics(q []float64, l int, jac *mat.Dense) r3.Vector {
	lg := r.legs[l]
	l1, l2 := r.desc.ThighLength, r.desc.CalfLength
	j0 := r.nb + jointsPerLeg*l
	a0, a1, a2 := q[j0], q[j0+1], q[j0+2]

	s1, c1 := math.Sincos(a1)
	s12, c12 := math.Sincos(a1 + a2)
	y := r3.Vector{
		X: -l1*s1 - l2*s12,
		Y: lg.side * r.desc.ThighOffset,
		Z: -l1*c1 - l2*c12,
	}
	rx := rotX(a0)
	pb := lg.hip.Add(rx.apply(y))
	dpb := [3]r3.Vector{
		drotX(a0).apply(y),
		rx.apply(r3.Vector{X: y.Z, Z: -y.X}),
		rx.apply(r3.Vector{X: -l2 * c12, Z: l2 * s12}),
	}

	pBase, roll, pitch, yaw := r.basePose(q)
	R, dR := rpy(roll, pitch, yaw)

	jac.Zero()
	if r.base == FloatingBase {
		for i := 0; i < 3; i++ {
			jac.Set(i, i, 1)
		}
		for k := 0; k < 3; k++ {
			col := dR[k].apply(pb)
			jac.Set(0, 3+k, col.X)
			jac.Set(1, 3+k, col.Y)
			jac.Set(2, 3+k, col.Z)
		}
	}
	for k := 0; k < jointsPerLeg; k++ {
		col := R.apply(dpb[k])
		jac.Set(0, j0+k, col.X)
		jac.Set(1, j0+k, col.Y)
		jac.Set(2, j0+k, col.Z)
	}
	return pBase.Add(R.apply(pb))
}

// LegJoints returns the index in v of the first of the three joints
// driving the foot frame id.
func (r *Quadruped) LegJoints(id FrameID) int { return r.nb + jointsPerLeg*int(id) }

// JointOffsets returns the index of the first actuated coordinate in q and
// in v.
func JointOffsets(m Model) (qi, vi int) {
	return m.DimQ() - m.DimU(), m.DimV() - m.DimU()
}

var _ LegModel = (*Quadruped)(nil)
