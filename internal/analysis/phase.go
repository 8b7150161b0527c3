package analysis

import (
	"math"

	"github.com/san-kum/legmpc/internal/viz"
)

type Point2D struct{ X, Y float64 }

// PhasePortrait2D holds data for a 2D phase space plot
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []Point2D
}

// GeneratePhasePortrait pairs entries xIdx and yIdx of every state.
// States too short for either index are skipped.
func GeneratePhasePortrait(states [][]float64, xIdx, yIdx int) *PhasePortrait2D {
	if xIdx < 0 || yIdx < 0 {
		return nil
	}
	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point2D, 0, len(states)),
	}
	for _, x := range states {
		if xIdx >= len(x) || yIdx >= len(x) {
			continue
		}
		portrait.Points = append(portrait.Points, Point2D{X: x[xIdx], Y: x[yIdx]})
	}
	return portrait
}

// StroboscopicSection samples phase space entries xIdx and yIdx at the
// first state at or after every multiple of period.
func StroboscopicSection(states [][]float64, times []float64, period float64, xIdx, yIdx int) *PhasePortrait2D {
	section := &PhasePortrait2D{XIndex: xIdx, YIndex: yIdx}
	if period <= 0 || len(states) != len(times) {
		return section
	}
	next := 0.0
	for i, t := range times {
		if t+1e-9 < next {
			continue
		}
		x := states[i]
		if xIdx < len(x) && yIdx < len(x) {
			section.Points = append(section.Points, Point2D{X: x[xIdx], Y: x[yIdx]})
		}
		next = (math.Floor((t+1e-9)/period) + 1) * period
	}
	return section
}

// Spread is the distance between the last two points, zero for fewer
// than two.
func (p *PhasePortrait2D) Spread() float64 {
	n := len(p.Points)
	if n < 2 {
		return 0
	}
	a, b := p.Points[n-2], p.Points[n-1]
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func (p *PhasePortrait2D) bounds() (lo, hi Point2D) {
	lo, hi = p.Points[0], p.Points[0]
	for _, q := range p.Points {
		lo.X, hi.X = math.Min(lo.X, q.X), math.Max(hi.X, q.X)
		lo.Y, hi.Y = math.Min(lo.Y, q.Y), math.Max(hi.Y, q.Y)
	}
	pad := func(a, b float64) (float64, float64) {
		r := b - a
		if r == 0 {
			r = 1
		}
		return a - 0.1*r, b + 0.1*r
	}
	lo.X, hi.X = pad(lo.X, hi.X)
	lo.Y, hi.Y = pad(lo.Y, hi.Y)
	return lo, hi
}

// PhasePortraitToASCII draws the portrait as a connected Braille curve
// on width x height cells, with dotted axes where they are visible.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 1 || height < 1 {
		return ""
	}
	lo, hi := portrait.bounds()
	c := viz.NewCanvas(width, height)
	pw, ph := 2*width-1, 4*height-1
	pixel := func(p Point2D) (int, int) {
		x := int(math.Round((p.X - lo.X) / (hi.X - lo.X) * float64(pw)))
		y := ph - int(math.Round((p.Y-lo.Y)/(hi.Y-lo.Y)*float64(ph)))
		return x, y
	}

	origin := Point2D{}
	ox, oy := pixel(origin)
	if lo.X <= 0 && hi.X >= 0 {
		for y := 0; y <= ph; y += 2 {
			c.Set(ox, y)
		}
	}
	if lo.Y <= 0 && hi.Y >= 0 {
		for x := 0; x <= pw; x += 2 {
			c.Set(x, oy)
		}
	}

	x0, y0 := pixel(portrait.Points[0])
	c.Set(x0, y0)
	for _, p := range portrait.Points[1:] {
		x1, y1 := pixel(p)
		c.DrawLine(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
	return c.String() + "\n"
}
