package metrics

import (
	"math"

	"github.com/san-kum/legmpc/internal/dynamo"
)

// Stability is the fraction of steps with the base upright: roll and
// pitch inside tilt and the base above minHeight. It assumes the
// roll-pitch-yaw floating base layout.
type Stability struct {
	name       string
	tilt       float64
	minHeight  float64
	violations int
	samples    int
}

func NewStability(tilt, minHeight float64) *Stability {
	return &Stability{
		name:      "stability",
		tilt:      tilt,
		minHeight: minHeight,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 6 {
		return
	}
	s.samples++
	if x[2] < s.minHeight || math.Abs(x[3]) > s.tilt || math.Abs(x[4]) > s.tilt {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
