// Package estimator infers foot contact from proprioception. The force
// on each foot is recovered from the joint torque residual of its leg
//
//	f = J_leg^-T (tau_ID - tau)
//
// and squashed into a contact probability with a logistic model of the
// normal force.
package estimator

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
)

// Settings of the logistic contact model, one entry per contact.
type Settings struct {
	Beta0 []float64 `yaml:"beta0"`
	Beta1 []float64 `yaml:"beta1"`
	// CovarianceAlpha scales the squared change of the normal force
	// between updates into a force covariance.
	CovarianceAlpha float64   `yaml:"force_covariance_alpha"`
	ForceSensorBias []float64 `yaml:"force_sensor_bias"`
}

// DefaultSettings are tuned for the A1.
func DefaultSettings(contacts int) Settings {
	s := Settings{
		Beta0:           make([]float64, contacts),
		Beta1:           make([]float64, contacts),
		CovarianceAlpha: 100,
		ForceSensorBias: make([]float64, contacts),
	}
	for i := 0; i < contacts; i++ {
		s.Beta0[i] = -20
		s.Beta1[i] = 0.7
	}
	return s
}

func (s Settings) validate(n int) error {
	var err error
	err = multierr.Append(err, dynamo.CheckDim("beta0", len(s.Beta0), n))
	err = multierr.Append(err, dynamo.CheckDim("beta1", len(s.Beta1), n))
	if s.ForceSensorBias != nil {
		err = multierr.Append(err, dynamo.CheckDim("force_sensor_bias", len(s.ForceSensorBias), n))
	}
	if s.CovarianceAlpha < 0 {
		err = multierr.Append(err, dynamo.Configf("force covariance alpha must be non-negative, got %g", s.CovarianceAlpha))
	}
	return err
}

type Estimator struct {
	model    robot.LegModel
	settings Settings
	nq, nv   int

	force   []r3.Vector
	normal  []float64
	prev    []float64
	prob    []float64
	cov     []float64
	normals []r3.Vector

	mass *mat.Dense
	h    []float64
	acc  *mat.VecDense
	tau  *mat.VecDense
	jac  *mat.Dense
	leg  *mat.Dense
	rhs  *mat.VecDense
	sol  *mat.VecDense
}

func New(m robot.LegModel, s Settings) (*Estimator, error) {
	n := len(m.ContactFrames())
	if err := s.validate(n); err != nil {
		return nil, err
	}
	nv := m.DimV()
	e := &Estimator{
		model:    m.Clone().(robot.LegModel),
		settings: s,
		nq:       m.DimQ(),
		nv:       nv,
		force:    make([]r3.Vector, n),
		normal:   make([]float64, n),
		prev:     make([]float64, n),
		prob:     make([]float64, n),
		cov:      make([]float64, n),
		normals:  make([]r3.Vector, n),
		mass:     mat.NewDense(nv, nv, nil),
		h:        make([]float64, nv),
		acc:      mat.NewVecDense(nv, nil),
		tau:      mat.NewVecDense(nv, nil),
		jac:      mat.NewDense(3, nv, nil),
		leg:      mat.NewDense(3, 3, nil),
		rhs:      mat.NewVecDense(3, nil),
		sol:      mat.NewVecDense(3, nil),
	}
	for i := range e.normals {
		e.normals[i] = r3.Vector{Z: 1}
	}
	return e, nil
}

// Update estimates the contact forces from the measured configuration,
// velocity, acceleration and joint torques.
func (e *Estimator) Update(q, v, a, tau []float64) error {
	if err := multierr.Combine(
		dynamo.CheckDim("q", len(q), e.nq),
		dynamo.CheckDim("v", len(v), e.nv),
		dynamo.CheckDim("a", len(a), e.nv),
		dynamo.CheckDim("tau", len(tau), e.model.DimU()),
	); err != nil {
		return err
	}

	// Inverse dynamics without contacts.
	e.model.MassMatrix(q, e.mass)
	e.model.NonlinearEffects(q, v, e.h)
	for i, ai := range a {
		e.acc.SetVec(i, ai)
	}
	e.tau.MulVec(e.mass, e.acc)
	for i := range e.h {
		e.tau.SetVec(i, e.tau.AtVec(i)+e.h[i])
	}

	e.model.ForwardKinematics(q)
	_, vi := robot.JointOffsets(e.model)
	for c, id := range e.model.ContactFrames() {
		j0 := e.model.LegJoints(id)
		e.model.FrameJacobian(id, e.jac)
		for r := 0; r < 3; r++ {
			for k := 0; k < 3; k++ {
				e.leg.Set(k, r, e.jac.At(r, j0+k))
			}
			e.rhs.SetVec(r, e.tau.AtVec(j0+r)-tau[j0+r-vi])
		}
		if err := e.sol.SolveVec(e.leg, e.rhs); err != nil {
			return fmt.Errorf("%w: leg jacobian of contact %d: %v", dynamo.ErrSingular, c, err)
		}
		e.force[c] = r3.Vector{X: e.sol.AtVec(0), Y: e.sol.AtVec(1), Z: e.sol.AtVec(2)}
		e.normal[c] = e.force[c].Dot(e.normals[c])
	}

	for c := range e.prob {
		p := 1 / (1 + math.Exp(-e.settings.Beta1[c]*e.normal[c]-e.settings.Beta0[c]))
		if math.IsNaN(p) || math.IsInf(p, 0) {
			p = 0
		}
		e.prob[c] = p
	}
	for c := range e.cov {
		df := e.normal[c] - e.prev[c]
		e.cov[c] = e.settings.CovarianceAlpha * df * df
		e.prev[c] = e.normal[c]
	}
	return nil
}

// Reset forgets the previous normal forces.
func (e *Estimator) Reset() {
	for i := range e.prev {
		e.prev[i] = 0
	}
}

func (e *Estimator) SetParameters(s Settings) error {
	if err := s.validate(len(e.prob)); err != nil {
		return err
	}
	e.settings = s
	return nil
}

func (e *Estimator) Settings() Settings { return e.settings }

// SetSurfaceNormals sets the ground normal under each foot. The normals
// are normalized.
func (e *Estimator) SetSurfaceNormals(normals []r3.Vector) error {
	if err := dynamo.CheckDim("surface normals", len(normals), len(e.normals)); err != nil {
		return err
	}
	for i, n := range normals {
		if n.Norm() == 0 {
			return dynamo.Configf("surface normal %d is zero", i)
		}
		e.normals[i] = n.Normalize()
	}
	return nil
}

func (e *Estimator) SurfaceNormals() []r3.Vector { return e.normals }
func (e *Estimator) Forces() []r3.Vector         { return e.force }
func (e *Estimator) NormalForces() []float64     { return e.normal }
func (e *Estimator) Probabilities() []float64    { return e.prob }

// ContactStatus thresholds the contact probabilities.
func (e *Estimator) ContactStatus(threshold float64) []bool {
	out := make([]bool, len(e.prob))
	for i, p := range e.prob {
		out[i] = p >= threshold
	}
	return out
}

// ForceCovariance is the mean force covariance over the contacts whose
// probability reaches threshold, zero when there are none.
func (e *Estimator) ForceCovariance(threshold float64) float64 {
	active := 0
	for _, p := range e.prob {
		if p >= threshold {
			active++
		}
	}
	if active == 0 {
		return 0
	}
	var sum float64
	for _, c := range e.cov {
		sum += c
	}
	return sum / float64(active)
}
