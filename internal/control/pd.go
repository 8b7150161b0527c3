package control

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/mpc"
	"github.com/san-kum/legmpc/internal/ocp"
	"github.com/san-kum/legmpc/internal/robot"
)

// PD holds a joint posture with gravity compensation on all four feet:
//
//	u = u_static + Kp (q_ref - q) - Kd v
//
// on the actuated joints. It has the tick interface of the MPC so the
// simulator can run it in its place.
type PD struct {
	Kp float64
	Kd float64

	model robot.Model
	qRef  []float64
	cmd   mpc.Command
}

func NewPD(m robot.Model, qRef []float64, kp, kd float64) (*PD, error) {
	if err := dynamo.CheckDim("q_ref", len(qRef), m.DimQ()); err != nil {
		return nil, err
	}
	if kp < 0 || kd < 0 {
		return nil, dynamo.Configf("pd gains must be non-negative, got kp=%g kd=%g", kp, kd)
	}
	p := &PD{Kp: kp, Kd: kd, model: m.Clone(), qRef: append([]float64(nil), qRef...)}
	if err := p.build(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PD) build() error {
	nq, nv, nu := p.model.DimQ(), p.model.DimV(), p.model.DimU()
	active := make([]bool, len(p.model.ContactFrames()))
	for i := range active {
		active[i] = true
	}
	u, _, err := ocp.StaticTorque(p.model, p.qRef, active)
	if err != nil {
		return err
	}
	qi, vi := robot.JointOffsets(p.model)
	k := mat.NewDense(nu, nq+nv, nil)
	for j := 0; j < nu; j++ {
		k.Set(j, qi+j, -p.Kp)
		k.Set(j, nq+vi+j, -p.Kd)
	}
	p.cmd = mpc.Command{
		U: u,
		K: k,
		X: dynamo.NewState(p.qRef, make([]float64, nv)),
	}
	return nil
}

// SetGains changes the gains used by the next Update.
func (p *PD) SetGains(kp, kd float64) error {
	if kp < 0 || kd < 0 {
		return dynamo.Configf("pd gains must be non-negative, got kp=%g kd=%g", kp, kd)
	}
	p.Kp, p.Kd = kp, kd
	return p.build()
}

func (p *PD) Update(_ context.Context, t float64, q, v []float64) (mpc.Command, error) {
	cmd := p.cmd
	cmd.Time = t
	cmd.Diagnostics.Converged = true
	return cmd, nil
}

func (p *PD) ContactStatus(float64) []bool {
	active := make([]bool, len(p.model.ContactFrames()))
	for i := range active {
		active[i] = true
	}
	return active
}
