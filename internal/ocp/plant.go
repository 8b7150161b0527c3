package ocp

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/integrators"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/stage"
)

// Plant simulates the robot under a commanded contact status. A contact
// that becomes active is anchored where its foot is, its velocity is
// brought to rest by the touchdown impulse, and it stays anchored there
// until it lifts.
type Plant struct {
	model  robot.Model
	dyn    *ContactDynamics
	integ  integrators.Integrator
	status stage.ContactStatus
	primed bool
	xs     dynamo.State
	dv     []float64
}

func NewPlant(m robot.Model, integ integrators.Integrator, mu float64) *Plant {
	m = m.Clone()
	if integ == nil {
		integ = integrators.NewSemiImplicitEuler()
	}
	p := &Plant{
		model:  m,
		dyn:    NewContactDynamics(m),
		integ:  integ,
		status: stage.NewContactStatus(len(m.ContactFrames())),
		xs:     make(dynamo.State, m.DimQ()+m.DimV()),
		dv:     make([]float64, m.DimV()),
	}
	for c := range p.status.Mu {
		p.status.Mu[c] = mu
	}
	return p
}

// Status is the contact status applied on the last step.
func (p *Plant) Status() stage.ContactStatus { return p.status }

// Forces are the contact forces of the last step.
func (p *Plant) Forces() []r3.Vector { return p.dyn.Forces() }

// Reset forgets the contact anchors.
func (p *Plant) Reset() { p.primed = false }

// Step advances x by dt under u with the contacts in active.
func (p *Plant) Step(x dynamo.State, u dynamo.Control, t, dt float64, active []bool, next dynamo.State) error {
	if err := dynamo.CheckDim("contact status", len(active), len(p.status.Active)); err != nil {
		return err
	}
	if err := dynamo.CheckDim("state", len(x), len(p.xs)); err != nil {
		return err
	}
	nq := p.model.DimQ()
	q, v := x.Split(nq)
	p.model.ForwardKinematics(q)

	touchdown := false
	for c, on := range active {
		if on && (!p.status.Active[c] || !p.primed) {
			p.status.Anchors[c] = p.model.FramePosition(p.model.ContactFrames()[c])
			touchdown = touchdown || p.primed
		}
		p.status.Active[c] = on
	}
	p.primed = true

	copy(p.xs, x)
	if touchdown {
		if err := p.dyn.Impulse(q, v, p.status.Active, p.dv); err != nil {
			return err
		}
		for i, d := range p.dv {
			p.xs[nq+i] += d
		}
	}
	p.dyn.SetContactStatus(p.status)
	return p.integ.Step(p.dyn, p.xs, u, t, dt, next)
}
