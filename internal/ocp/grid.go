package ocp

import (
	"math"
	"sort"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/stage"
)

// Knot is one node of the horizon. Regular and impulse knots integrate a
// segment of length Dt under Status; an impulse knot first applies the
// touchdown velocity jump when Jump is set. The terminal knot has Dt = 0.
type Knot struct {
	Time   float64
	Dt     float64
	Kind   stage.Kind
	Status stage.ContactStatus
	Jump   bool
	// Touchdown marks the contacts that become active at an impulse knot.
	Touchdown []bool
}

// grid is a fixed-capacity knot array with an active length.
type grid struct {
	knots  []Knot
	active int
	times  []float64
	kinds  []bool
}

func newGrid(capacity, contacts int) *grid {
	g := &grid{
		knots: make([]Knot, capacity),
		times: make([]float64, 0, capacity),
		kinds: make([]bool, 0, capacity),
	}
	for i := range g.knots {
		g.knots[i].Status = stage.NewContactStatus(contacts)
		g.knots[i].Touchdown = make([]bool, contacts)
	}
	return g
}

// build lays out N uniform knots over [t0, t0+T] and inserts an impulse
// knot at every switch time in [t0, t0+T). A switch closer than minDt to
// a regular knot turns that knot into the impulse knot; a switch that
// close to the terminal knot is left to the next horizon.
func (g *grid) build(seq ContactSequence, t0, horizon float64, n int, minDt, mu float64) error {
	h := horizon / float64(n)
	g.times = g.times[:0]
	g.kinds = g.kinds[:0]
	for k := 0; k <= n; k++ {
		g.times = append(g.times, t0+float64(k)*h)
		g.kinds = append(g.kinds, false)
	}
	g.times[n] = t0 + horizon

	for _, s := range seq.SwitchTimes(t0, t0+horizon) {
		k := int(math.Round((s - t0) / h))
		k = max(0, min(n, k))
		if math.Abs(s-g.times[k]) < minDt {
			if k < n {
				g.kinds[k] = true
			}
			continue
		}
		if len(g.times) >= len(g.knots) {
			return dynamo.Configf("horizon needs more than %d impulse knots", len(g.knots)-n-1)
		}
		g.times = append(g.times, s)
		g.kinds = append(g.kinds, true)
	}
	sort.Sort(byTime{g})

	g.active = len(g.times)
	for i := 0; i < g.active; i++ {
		kn := &g.knots[i]
		kn.Time = g.times[i]
		kn.Kind = stage.Regular
		if g.kinds[i] {
			kn.Kind = stage.Impulse
		}
		mid := kn.Time
		if i == g.active-1 {
			kn.Kind = stage.Terminal
			kn.Dt = 0
		} else {
			kn.Dt = g.times[i+1] - kn.Time
			mid = kn.Time + 0.5*kn.Dt
		}
		active := seq.ContactStatus(mid)
		for c := range kn.Status.Active {
			kn.Status.Active[c] = active[c]
			kn.Status.Mu[c] = mu
			kn.Status.Anchors[c] = seq.Anchor(c, mid)
		}

		kn.Jump = false
		for c := range kn.Touchdown {
			kn.Touchdown[c] = false
		}
		if kn.Kind == stage.Impulse {
			before := seq.ContactStatus(kn.Time - minDt)
			for c := range kn.Touchdown {
				if active[c] && !before[c] {
					kn.Touchdown[c] = true
					kn.Jump = true
				}
			}
		}
	}
	return nil
}

type byTime struct{ g *grid }

func (b byTime) Len() int           { return len(b.g.times) }
func (b byTime) Less(i, j int) bool { return b.g.times[i] < b.g.times[j] }
func (b byTime) Swap(i, j int) {
	b.g.times[i], b.g.times[j] = b.g.times[j], b.g.times[i]
	b.g.kinds[i], b.g.kinds[j] = b.g.kinds[j], b.g.kinds[i]
}
