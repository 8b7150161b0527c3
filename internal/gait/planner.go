package gait

import (
	"strings"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
)

// Planner derives a gait pattern for the current command.
type Planner interface {
	// Reset anchors the plan at configuration q.
	Reset(q []float64) error
	Plan(swingTime, initialLiftTime float64) (*Pattern, error)
}

var legAliases = map[string]Leg{
	"LF": LF, "FL": LF,
	"LH": LH, "RL": LH, "HL": LH,
	"RF": RF, "FR": RF,
	"RH": RH, "RR": RH, "HR": RH,
}

// LegOf recognizes a foot frame name such as "FL_foot" or "LF_FOOT".
func LegOf(frame string) (Leg, bool) {
	prefix, _, _ := strings.Cut(strings.ToUpper(frame), "_")
	l, ok := legAliases[prefix]
	return l, ok
}

// DefaultStepHeight is the swing apex height of a new planner.
const DefaultStepHeight = 0.1

// TrottingPlanner plans a symmetric trot from a step vector and a yaw
// increment per step.
type TrottingPlanner struct {
	model         robot.Model
	legs          []Leg
	step          r3.Vector
	yaw           float64
	firstStepHalf bool
	stepHeight    float64

	feet  []r3.Vector
	com   r3.Vector
	reset bool
}

func NewTrottingPlanner(m robot.Model) (*TrottingPlanner, error) {
	frames := m.ContactFrames()
	if len(frames) != 4 {
		return nil, dynamo.Configf("trotting needs 4 contacts, model has %d", len(frames))
	}
	legs := make([]Leg, len(frames))
	seen := make(map[Leg]bool)
	for i, id := range frames {
		name := m.FrameName(id)
		l, ok := LegOf(name)
		if !ok {
			return nil, dynamo.Configf("cannot tell which leg contact frame %q belongs to", name)
		}
		if seen[l] {
			return nil, dynamo.Configf("leg %s has more than one contact frame", l)
		}
		seen[l] = true
		legs[i] = l
	}
	return &TrottingPlanner{
		model:      m.Clone(),
		legs:       legs,
		stepHeight: DefaultStepHeight,
		feet:       make([]r3.Vector, len(frames)),
	}, nil
}

// SetGaitPattern sets the step displacement and the yaw turned per step.
func (p *TrottingPlanner) SetGaitPattern(step r3.Vector, yawPerStep float64) {
	p.step = step
	p.yaw = yawPerStep
}

// SetFirstStepHalf halves the first step of the pair that lifts first.
func (p *TrottingPlanner) SetFirstStepHalf(half bool) {
	p.firstStepHalf = half
}

// SetStepHeight sets the apex height of the swing foot references.
func (p *TrottingPlanner) SetStepHeight(h float64) error {
	if !(h >= 0) {
		return dynamo.Configf("step height must be non-negative, got %g", h)
	}
	p.stepHeight = h
	return nil
}

func (p *TrottingPlanner) Reset(q []float64) error {
	if err := dynamo.CheckDim("q", len(q), p.model.DimQ()); err != nil {
		return err
	}
	p.model.ForwardKinematics(q)
	for i, id := range p.model.ContactFrames() {
		p.feet[i] = p.model.FramePosition(id)
	}
	p.com = p.model.CoM()
	p.reset = true
	return nil
}

func (p *TrottingPlanner) Plan(swingTime, initialLiftTime float64) (*Pattern, error) {
	if swingTime <= 0 {
		return nil, dynamo.Configf("swing time must be positive, got %g", swingTime)
	}
	if initialLiftTime < 0 {
		return nil, dynamo.Configf("initial lift time must be non-negative, got %g", initialLiftTime)
	}
	if !p.reset {
		return nil, dynamo.Configf("planner has no initial configuration, call Reset first")
	}

	lift := make([]float64, len(p.legs))
	for i, l := range p.legs {
		switch l {
		case RF, LH:
			lift[i] = initialLiftTime
		case LF, RH:
			lift[i] = initialLiftTime + swingTime
		}
	}
	return &Pattern{
		legs:          append([]Leg(nil), p.legs...),
		lift:          lift,
		initialLift:   initialLiftTime,
		swing:         swingTime,
		step:          p.step,
		yaw:           p.yaw,
		firstStepHalf: p.firstStepHalf,
		stepHeight:    p.stepHeight,
		feet:          append([]r3.Vector(nil), p.feet...),
		com:           p.com,
	}, nil
}

var _ Planner = (*TrottingPlanner)(nil)
