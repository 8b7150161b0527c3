package metrics

import (
	"math"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/reference"
	"github.com/san-kum/legmpc/internal/robot"
)

// CoMTracking is the RMS distance between the CoM and its reference.
type CoMTracking struct {
	name    string
	model   robot.Model
	nq      int
	track   reference.Track
	sum     float64
	max     float64
	samples int
}

// NewCoMTracking measures against track. A track that is not yet
// available can be wrapped in reference.Func.
func NewCoMTracking(m robot.Model, track reference.Track) *CoMTracking {
	return &CoMTracking{
		name:  "com_tracking_rms",
		model: m.Clone(),
		nq:    m.DimQ(),
		track: track,
	}
}

func (c *CoMTracking) Name() string { return c.name }

func (c *CoMTracking) Observe(x dynamo.State, u dynamo.Control, t float64) {
	q, _ := x.Split(c.nq)
	c.model.ForwardKinematics(q)
	e := c.model.CoM().Sub(c.track.Position(t)).Norm()
	c.sum += e * e
	c.max = math.Max(c.max, e)
	c.samples++
}

func (c *CoMTracking) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sum / float64(c.samples))
}

// Max is the largest tracking error seen.
func (c *CoMTracking) Max() float64 { return c.max }

func (c *CoMTracking) Reset() {
	c.sum = 0
	c.max = 0
	c.samples = 0
}
