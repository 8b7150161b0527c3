package ocp

import (
	"github.com/golang/geo/r3"
)

// ContactSequence is the contact schedule bound into the problem.
// *gait.Pattern implements it.
type ContactSequence interface {
	ContactStatus(t float64) []bool
	Anchor(contact int, t float64) r3.Vector
	// SwitchTimes lists the switches in the half-open window [from, to).
	SwitchTimes(from, to float64) []float64
	MaxSwitches(window float64) int
}

// Standing keeps every contact active at fixed anchors.
type Standing []r3.Vector

func (s Standing) ContactStatus(float64) []bool {
	active := make([]bool, len(s))
	for i := range active {
		active[i] = true
	}
	return active
}

func (s Standing) Anchor(contact int, _ float64) r3.Vector { return s[contact] }
func (s Standing) SwitchTimes(float64, float64) []float64   { return nil }
func (s Standing) MaxSwitches(float64) int                   { return 0 }
