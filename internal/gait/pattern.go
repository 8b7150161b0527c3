package gait

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/robot"
)

// Leg names a quadruped leg independent of the contact frame order.
type Leg int

const (
	LF Leg = iota
	LH
	RF
	RH
)

func (l Leg) String() string {
	return [...]string{"LF", "LH", "RF", "RH"}[l]
}

// PhaseKind distinguishes stance from swing.
type PhaseKind int

const (
	Stance PhaseKind = iota
	Swing
)

func (k PhaseKind) String() string {
	if k == Swing {
		return "swing"
	}
	return "stance"
}

// Phase is one stance or swing interval of one contact.
type Phase struct {
	Contact  int
	Leg      Leg
	Start    float64
	Duration float64
	Kind     PhaseKind
}

func (p Phase) End() float64 { return p.Start + p.Duration }

// switchEps merges switch times that coincide up to rounding.
const switchEps = 1e-9

// Pattern is a symmetric trot: the (RF, LH) pair lifts at the initial
// lift time, the (LF, RH) pair one swing later, and every contact repeats
// with period 2*swing. Swing windows are half-open [lift, lift+swing).
// A Pattern is immutable and safe for concurrent use.
type Pattern struct {
	legs          []Leg
	lift          []float64
	initialLift   float64
	swing         float64
	step          r3.Vector
	yaw           float64
	firstStepHalf bool
	stepHeight    float64
	feet          []r3.Vector
	com           r3.Vector

	// origin is the time the feet and CoM were measured; base counts the
	// swings each contact finished before it.
	origin float64
	base   []int
}

func (p *Pattern) NumContacts() int { return len(p.legs) }
func (p *Pattern) Leg(contact int) Leg { return p.legs[contact] }
func (p *Pattern) SwingTime() float64 { return p.swing }
func (p *Pattern) Period() float64 { return 2 * p.swing }
func (p *Pattern) InitialLiftTime() float64 { return p.initialLift }
func (p *Pattern) Step() r3.Vector { return p.step }
func (p *Pattern) YawPerStep() float64 { return p.yaw }
func (p *Pattern) InitialCoM() r3.Vector { return p.com }
func (p *Pattern) StepHeight() float64 { return p.stepHeight }

// LiftTime is the first lift-off time of a contact.
func (p *Pattern) LiftTime(contact int) float64 { return p.lift[contact] }

// InitialFoothold is the foothold of a contact at Reset.
func (p *Pattern) InitialFoothold(contact int) r3.Vector { return p.feet[contact] }

// FirstStepHalf reports whether the first swing of contact is shortened.
func (p *Pattern) FirstStepHalf(contact int) bool {
	return p.firstStepHalf && p.lift[contact] == p.initialLift
}

// cycle returns the index of the swing that is running or was last
// completed at t, and whether the contact is swinging. Before the first
// lift the index is -1.
func (p *Pattern) cycle(contact int, t float64) (j int, swinging bool) {
	rel := t - p.lift[contact]
	if rel < 0 {
		return -1, false
	}
	period := p.Period()
	j = int(math.Floor(rel / period))
	return j, rel-float64(j)*period < p.swing
}

// InSwing reports whether the contact is airborne at t.
func (p *Pattern) InSwing(contact int, t float64) bool {
	_, swinging := p.cycle(contact, t)
	return swinging
}

// ContactStatus returns the stance flags of all contacts at t.
func (p *Pattern) ContactStatus(t float64) []bool {
	active := make([]bool, len(p.legs))
	for c := range active {
		active[c] = !p.InSwing(c, t)
	}
	return active
}

// CompletedSwings is the number of swings of contact finished by t.
func (p *Pattern) CompletedSwings(contact int, t float64) int {
	j, swinging := p.cycle(contact, t)
	if swinging {
		return j
	}
	return j + 1
}

// SwitchTimes returns the sorted, de-duplicated contact switch times in
// the half-open window [from, to).
func (p *Pattern) SwitchTimes(from, to float64) []float64 {
	var times []float64
	period := p.Period()
	for c := range p.legs {
		lift := p.lift[c]
		k := 0
		if from > lift {
			k = int(math.Floor((from - lift) / period))
		}
		for ; ; k++ {
			up := lift + float64(k)*period
			if up >= to {
				break
			}
			for _, s := range []float64{up, up + p.swing} {
				if s >= from-switchEps && s < to-switchEps {
					times = append(times, s)
				}
			}
		}
	}
	sort.Float64s(times)
	out := times[:0]
	for _, s := range times {
		if len(out) == 0 || s-out[len(out)-1] > switchEps {
			out = append(out, s)
		}
	}
	return out
}

// MaxSwitches bounds the number of switch times any half-open window of
// the given length can contain.
func (p *Pattern) MaxSwitches(window float64) int {
	if window <= 0 {
		return 0
	}
	return int(math.Ceil(window/p.swing - switchEps))
}

// Phases lists every stance and swing interval overlapping [from, to),
// clipped to the window and ordered by start time, then contact.
func (p *Pattern) Phases(from, to float64) []Phase {
	var phases []Phase
	for c := range p.legs {
		bounds := append([]float64{from}, p.contactSwitches(c, from, to)...)
		bounds = append(bounds, to)
		for i := 0; i+1 < len(bounds); i++ {
			start, end := bounds[i], bounds[i+1]
			if end-start <= switchEps {
				continue
			}
			kind := Stance
			if p.InSwing(c, 0.5*(start+end)) {
				kind = Swing
			}
			phases = append(phases, Phase{
				Contact:  c,
				Leg:      p.legs[c],
				Start:    start,
				Duration: end - start,
				Kind:     kind,
			})
		}
	}
	sort.SliceStable(phases, func(i, j int) bool {
		if phases[i].Start != phases[j].Start {
			return phases[i].Start < phases[j].Start
		}
		return phases[i].Contact < phases[j].Contact
	})
	return phases
}

func (p *Pattern) contactSwitches(contact int, from, to float64) []float64 {
	var out []float64
	period := p.Period()
	for k := 0; ; k++ {
		up := p.lift[contact] + float64(k)*period
		if up >= to {
			return out
		}
		for _, s := range []float64{up, up + p.swing} {
			if s > from && s < to {
				out = append(out, s)
			}
		}
	}
}

// displacement is the base-frame travel accumulated over the first j
// steps, each rotated by the yaw of the step it belongs to.
func (p *Pattern) displacement(j int, halfFirst bool) r3.Vector {
	var d r3.Vector
	for i := 0; i < j; i++ {
		s := robot.RotateZ(p.step, float64(i)*p.yaw)
		if i == 0 && halfFirst {
			s = s.Mul(0.5)
		}
		d = d.Add(s)
	}
	return d
}

// Foothold is the position of contact after its j-th swing. Swings
// finished before the plan origin share the measured foothold.
func (p *Pattern) Foothold(contact, j int) r3.Vector {
	k := j - p.swingsBefore(contact)
	if k <= 0 {
		return p.feet[contact]
	}
	half := p.FirstStepHalf(contact) && p.swingsBefore(contact) == 0
	rel := p.feet[contact].Sub(p.com)
	return p.com.Add(robot.RotateZ(rel, float64(k)*p.yaw)).Add(p.displacement(k, half))
}

func (p *Pattern) swingsBefore(contact int) int {
	if p.base == nil {
		return 0
	}
	return p.base[contact]
}

// Rebase returns a copy of p whose footholds and CoM were measured at t:
// step counting restarts at t and the CoM integrates from t. A contact
// swinging at t gets the takeoff foothold that puts its swing reference
// through the measured position.
func (p *Pattern) Rebase(t float64) *Pattern {
	out := *p
	out.origin = t
	out.base = make([]int, len(p.legs))
	out.feet = append([]r3.Vector(nil), p.feet...)
	for c := range p.legs {
		out.base[c] = p.CompletedSwings(c, t)
		j, swinging := p.cycle(c, t)
		if !swinging {
			continue
		}
		tau := t - p.lift[c] - float64(j)*p.Period()
		d := p.step
		if p.FirstStepHalf(c) && j == 0 {
			d = d.Mul(0.5)
		}
		from := out.feet[c].Sub(d.Mul(tau / p.swing))
		from.Z -= swingApex(tau, p.swing, p.stepHeight)
		out.feet[c] = from
	}
	return &out
}

// swingApex is the tent height of a swing reference tau into the swing.
func swingApex(tau, swing, height float64) float64 {
	if tau < 0.5*swing {
		return 2 * height * tau / swing
	}
	return 2 * height * (1 - tau/swing)
}

// Anchor is the stance foothold of contact at t. During a swing it is the
// landing foothold.
func (p *Pattern) Anchor(contact int, t float64) r3.Vector {
	j, _ := p.cycle(contact, t)
	return p.Foothold(contact, j+1)
}

// CoMVelocity is the commanded CoM speed: half the foot step per swing.
func (p *Pattern) CoMVelocity() r3.Vector {
	return p.step.Mul(0.5 / p.swing)
}

// CoMPosition is the CoM target at t. The CoM holds until the initial
// lift or the plan origin, whichever is later, then moves at CoMVelocity
// rotated by the yaw of the current step, at half speed during the first
// swing.
func (p *Pattern) CoMPosition(t float64) r3.Vector {
	start := math.Max(p.initialLift, p.origin)
	if t <= start {
		return p.com
	}
	v := p.CoMVelocity()
	k0 := int(math.Floor((start - p.initialLift) / p.swing))
	pos := p.com
	for k := k0; ; k++ {
		lo := math.Max(p.initialLift+float64(k)*p.swing, start)
		hi := math.Min(p.initialLift+float64(k+1)*p.swing, t)
		if hi > lo {
			seg := robot.RotateZ(v, float64(k-k0)*p.yaw).Mul(hi - lo)
			if k == 0 {
				seg = seg.Mul(0.5)
			}
			pos = pos.Add(seg)
		}
		if hi >= t {
			return pos
		}
	}
}
