// Package reference turns a gait pattern into time-parameterized targets
// for the swing feet and the center of mass. Every Track is a pure
// function of time and may be evaluated concurrently.
package reference

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/gait"
)

// Track is a target position as a function of absolute time.
type Track interface {
	Position(t float64) r3.Vector
}

// Fixed is a Track that never moves.
type Fixed r3.Vector

func (f Fixed) Position(float64) r3.Vector { return r3.Vector(f) }

// Func adapts a plain function to a Track.
type Func func(t float64) r3.Vector

func (f Func) Position(t float64) r3.Vector { return f(t) }

// Generator derives the foot and CoM tracks of a pattern.
type Generator struct {
	pattern *gait.Pattern
	height  float64
	feet    []Track
	com     Track
}

func NewGenerator(pattern *gait.Pattern, stepHeight float64) (*Generator, error) {
	if pattern == nil {
		return nil, dynamo.Configf("reference generator needs a gait pattern")
	}
	if stepHeight < 0 {
		return nil, dynamo.Configf("step height must be non-negative, got %g", stepHeight)
	}
	g := &Generator{
		pattern: pattern,
		height:  stepHeight,
		com:     CoMTrack{pattern: pattern},
	}
	for c := 0; c < pattern.NumContacts(); c++ {
		g.feet = append(g.feet, FootTrack{pattern: pattern, contact: c, height: stepHeight})
	}
	return g, nil
}

func (g *Generator) Pattern() *gait.Pattern { return g.pattern }
func (g *Generator) StepHeight() float64 { return g.height }

// Foot returns the track of a contact in model contact order.
func (g *Generator) Foot(contact int) Track { return g.feet[contact] }

func (g *Generator) CoM() Track { return g.com }
