package reference

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/gait"
)

// CoMTrack integrates the commanded CoM velocity of a pattern.
type CoMTrack struct {
	pattern *gait.Pattern
}

func (c CoMTrack) Position(t float64) r3.Vector {
	return c.pattern.CoMPosition(t)
}
