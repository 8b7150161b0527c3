package cost

import (
	"github.com/san-kum/legmpc/internal/reference"
	"github.com/san-kum/legmpc/internal/stage"
)

// CoM tracks the center of mass.
type CoM struct {
	track   reference.Track
	weights TrackWeights
	follow  bool
}

// NewCoM tracks the CoM against track. A nil track follows the CoM
// reference of every generator passed to BindTracks; an explicit track
// is kept.
func NewCoM(track reference.Track, w TrackWeights) (*CoM, error) {
	if err := w.validate("com"); err != nil {
		return nil, err
	}
	return &CoM{track: track, weights: w, follow: track == nil}, nil
}

func (c *CoM) Name() string { return "com" }

func (c *CoM) Track() reference.Track { return c.track }

func (c *CoM) BindTracks(g *reference.Generator) {
	if c.follow {
		c.track = g.CoM()
	}
}

func (c *CoM) eval(d *stage.Data, q *stage.Quadratic) float64 {
	if c.track == nil {
		return 0
	}
	running, extra := c.weights.at(d)
	if q != nil {
		d.Model.CoMJacobian(d.Jac)
	}
	p := d.Model.CoM()
	ref := c.track.Position(d.T)
	return track3D(p, ref, running, d.Jac, q) + track3D(p, ref, extra, d.Jac, q)
}

func (c *CoM) Evaluate(d *stage.Data) float64 { return c.eval(d, nil) }

func (c *CoM) Linearize(d *stage.Data, q *stage.Quadratic) float64 { return c.eval(d, q) }
