package ocp

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/stage"
)

const (
	// DefaultConditionLimit is the KKT condition number above which the
	// constraint block is damped.
	DefaultConditionLimit = 1e12
	// DefaultKKTDamping is the damping added to the constraint block.
	DefaultKKTDamping = 1e-8
)

type kktSystem struct {
	k   *mat.Dense
	rhs *mat.VecDense
	sol *mat.VecDense
	lu  mat.LU
}

// ContactDynamics evaluates contact-consistent forward dynamics
//
//	[M  -Jᵀ] [a]   [Sᵀu - h                          ]
//	[J   0 ] [f] = [-(Jdot·v + 2/τ·J·v + (p - p*)/τ²)]
//
// for the active contacts of the current status, and the touchdown
// impulse [M -Jᵀ; J 0][Δv; Λ] = [0; -J·v]. It implements
// integrators.SecondOrder. A ContactDynamics is not safe for concurrent
// use.
type ContactDynamics struct {
	model  robot.Model
	nq     int
	nv     int
	nu     int
	frames []robot.FrameID
	tau    float64

	condLimit float64
	damping   float64

	status  stage.ContactStatus
	m       *mat.Dense
	h       []float64
	jac     []*mat.Dense
	systems []*kktSystem
	forces  []r3.Vector
	active  []int
}

func NewContactDynamics(m robot.Model) *ContactDynamics {
	nv := m.DimV()
	frames := m.ContactFrames()
	d := &ContactDynamics{
		model:     m,
		nq:        m.DimQ(),
		nv:        nv,
		nu:        m.DimU(),
		frames:    frames,
		tau:       m.BaumgarteTimeStep(),
		condLimit: DefaultConditionLimit,
		damping:   DefaultKKTDamping,
		status:    stage.NewContactStatus(len(frames)),
		m:         mat.NewDense(nv, nv, nil),
		h:         make([]float64, nv),
		jac:       make([]*mat.Dense, len(frames)),
		systems:   make([]*kktSystem, len(frames)+1),
		forces:    make([]r3.Vector, len(frames)),
		active:    make([]int, 0, len(frames)),
	}
	for i := range d.jac {
		d.jac[i] = mat.NewDense(3, nv, nil)
	}
	return d
}

func (d *ContactDynamics) DimQ() int { return d.nq }

// SetContactStatus selects the active contacts and their anchors.
func (d *ContactDynamics) SetContactStatus(s stage.ContactStatus) {
	d.status = s
}

// Forces are the contact forces of the last Acceleration call in contact
// frame order; inactive contacts have zero force.
func (d *ContactDynamics) Forces() []r3.Vector { return d.forces }

func (d *ContactDynamics) system(na int) *kktSystem {
	if d.systems[na] == nil {
		n := d.nv + 3*na
		d.systems[na] = &kktSystem{
			k:   mat.NewDense(n, n, nil),
			rhs: mat.NewVecDense(n, nil),
			sol: mat.NewVecDense(n, nil),
		}
	}
	return d.systems[na]
}

// assemble evaluates kinematics and dynamics at (q, v) and fills the KKT
// matrix of the contacts in active.
func (d *ContactDynamics) assemble(q, v []float64, active []bool) *kktSystem {
	d.model.ForwardKinematics(q)
	d.model.MassMatrix(q, d.m)
	d.model.NonlinearEffects(q, v, d.h)

	d.active = d.active[:0]
	for c, on := range active {
		if on {
			d.active = append(d.active, c)
		}
	}
	sys := d.system(len(d.active))
	sys.k.Zero()
	for i := 0; i < d.nv; i++ {
		for j := 0; j < d.nv; j++ {
			sys.k.Set(i, j, d.m.At(i, j))
		}
	}
	for j, c := range d.active {
		jac := d.jac[c]
		d.model.FrameJacobian(d.frames[c], jac)
		for k := 0; k < 3; k++ {
			row := d.nv + 3*j + k
			for col := 0; col < d.nv; col++ {
				x := jac.At(k, col)
				sys.k.Set(row, col, x)
				sys.k.Set(col, row, -x)
			}
		}
	}
	return sys
}

func (d *ContactDynamics) solve(sys *kktSystem) error {
	n, _ := sys.k.Dims()
	sys.lu.Factorize(sys.k)
	if cond := sys.lu.Cond(); !(cond <= d.condLimit) {
		if n == d.nv {
			return fmt.Errorf("%w: mass matrix condition %.3g", dynamo.ErrSingular, cond)
		}
		for i := d.nv; i < n; i++ {
			sys.k.Set(i, i, sys.k.At(i, i)-d.damping)
		}
		sys.lu.Factorize(sys.k)
		if cond := sys.lu.Cond(); !(cond <= d.condLimit) {
			return fmt.Errorf("%w: contact KKT condition %.3g after damping", dynamo.ErrSingular, cond)
		}
	}
	if err := sys.lu.SolveVecTo(sys.sol, false, sys.rhs); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrSingular, err)
	}
	return nil
}

// Acceleration solves the contact dynamics at x under u.
func (d *ContactDynamics) Acceleration(x dynamo.State, u dynamo.Control, t float64, a []float64) error {
	q, v := x.Split(d.nq)
	sys := d.assemble(q, v, d.status.Active)

	off := d.nv - d.nu
	for i := 0; i < d.nv; i++ {
		r := -d.h[i]
		if i >= off {
			r += u[i-off]
		}
		sys.rhs.SetVec(i, r)
	}
	vv := mat.NewVecDense(d.nv, v)
	jv := mat.NewVecDense(3, nil)
	inv, inv2 := 2/d.tau, 1/(d.tau*d.tau)
	for j, c := range d.active {
		id := d.frames[c]
		jv.MulVec(d.jac[c], vv)
		bias := d.model.FrameBias(id, v)
		e := d.model.FramePosition(id).Sub(d.status.Anchors[c])
		row := d.nv + 3*j
		sys.rhs.SetVec(row, -(bias.X + inv*jv.AtVec(0) + inv2*e.X))
		sys.rhs.SetVec(row+1, -(bias.Y + inv*jv.AtVec(1) + inv2*e.Y))
		sys.rhs.SetVec(row+2, -(bias.Z + inv*jv.AtVec(2) + inv2*e.Z))
	}

	if err := d.solve(sys); err != nil {
		return err
	}
	for i := 0; i < d.nv; i++ {
		a[i] = sys.sol.AtVec(i)
	}
	for c := range d.forces {
		d.forces[c] = r3.Vector{}
	}
	for j, c := range d.active {
		row := d.nv + 3*j
		d.forces[c] = r3.Vector{X: sys.sol.AtVec(row), Y: sys.sol.AtVec(row + 1), Z: sys.sol.AtVec(row + 2)}
	}
	return nil
}

// Impulse writes into dv the velocity jump that brings every contact in
// active to rest at configuration q.
func (d *ContactDynamics) Impulse(q, v []float64, active []bool, dv []float64) error {
	sys := d.assemble(q, v, active)
	sys.rhs.Zero()
	vv := mat.NewVecDense(d.nv, v)
	jv := mat.NewVecDense(3, nil)
	for j, c := range d.active {
		jv.MulVec(d.jac[c], vv)
		row := d.nv + 3*j
		for k := 0; k < 3; k++ {
			sys.rhs.SetVec(row+k, -jv.AtVec(k))
		}
	}
	if err := d.solve(sys); err != nil {
		return err
	}
	for i := 0; i < d.nv; i++ {
		dv[i] = sys.sol.AtVec(i)
	}
	return nil
}

// staticRankTol is the relative singular value below which a direction
// of the base equilibrium is treated as unsupported.
const staticRankTol = 1e-9

// StaticTorque returns the joint torques and contact forces that hold
// configuration q at rest on the active contacts. The forces are the
// minimum-norm least-squares solution of the base equilibrium
// J_baseᵀ·f = h_base, so a stance that cannot balance every base wrench
// leaves the unsupported part as residual.
func StaticTorque(m robot.Model, q []float64, active []bool) (dynamo.Control, []r3.Vector, error) {
	nv, nu := m.DimV(), m.DimU()
	nb := nv - nu
	frames := m.ContactFrames()
	if err := dynamo.CheckDim("contact status", len(active), len(frames)); err != nil {
		return nil, nil, err
	}

	m.ForwardKinematics(q)
	h := make([]float64, nv)
	m.NonlinearEffects(q, make([]float64, nv), h)

	var idx []int
	for c, on := range active {
		if on {
			idx = append(idx, c)
		}
	}
	forces := make([]r3.Vector, len(frames))
	u := make(dynamo.Control, nu)
	copy(u, h[nb:])
	if len(idx) == 0 {
		return u, forces, nil
	}

	jac := mat.NewDense(3, nv, nil)
	stacked := mat.NewDense(3*len(idx), nv, nil)
	for j, c := range idx {
		m.FrameJacobian(frames[c], jac)
		for k := 0; k < 3; k++ {
			stacked.SetRow(3*j+k, jac.RawRowView(k))
		}
	}

	f := mat.NewVecDense(3*len(idx), nil)
	if nb > 0 {
		// A diagonal pair of point feet cannot resist a moment about the
		// line through them, so J_baseᵀ is rank deficient there.
		var svd mat.SVD
		if !svd.Factorize(stacked.Slice(0, 3*len(idx), 0, nb).T(), mat.SVDThin) {
			return nil, nil, fmt.Errorf("%w: static contact forces: SVD did not converge", dynamo.ErrSingular)
		}
		rank := svd.Rank(staticRankTol)
		if rank == 0 {
			return nil, nil, fmt.Errorf("%w: static contact forces: base Jacobian is zero", dynamo.ErrSingular)
		}
		svd.SolveVecTo(f, mat.NewVecDense(nb, append([]float64(nil), h[:nb]...)), rank)
	}

	// u = h_j - J_jᵀ f
	jjT := stacked.Slice(0, 3*len(idx), nb, nv).T()
	var tau mat.VecDense
	tau.MulVec(jjT, f)
	for i := 0; i < nu; i++ {
		u[i] -= tau.AtVec(i)
	}
	for j, c := range idx {
		forces[c] = r3.Vector{X: f.AtVec(3 * j), Y: f.AtVec(3*j + 1), Z: f.AtVec(3*j + 2)}
	}
	for _, x := range u {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, nil, fmt.Errorf("%w: static torque", dynamo.ErrInvalidState)
		}
	}
	return u, forces, nil
}
