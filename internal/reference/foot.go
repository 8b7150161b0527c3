package reference

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/gait"
)

// FootTrack holds a foot at its foothold during stance. During swing j it
// moves linearly from foothold j to foothold j+1 and rises along a tent
// that peaks at the step height at mid-swing.
type FootTrack struct {
	pattern *gait.Pattern
	contact int
	height  float64
}

func (f FootTrack) Position(t float64) r3.Vector {
	p := f.pattern
	j := p.CompletedSwings(f.contact, t)
	if !p.InSwing(f.contact, t) {
		return p.Foothold(f.contact, j)
	}

	swing := p.SwingTime()
	tau := t - p.LiftTime(f.contact) - float64(j)*p.Period()
	from := p.Foothold(f.contact, j)
	to := p.Foothold(f.contact, j+1)
	pos := from.Add(to.Sub(from).Mul(tau / swing))
	pos.Z += tent(tau, swing, f.height)
	return pos
}

func tent(tau, swing, height float64) float64 {
	if tau < 0.5*swing {
		return 2 * height * tau / swing
	}
	return 2 * height * (1 - tau/swing)
}
