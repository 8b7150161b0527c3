package cost

import (
	"testing"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/gait"
	"github.com/san-kum/legmpc/internal/robot"
)

func gaitPattern(t *testing.T, m robot.Model) (*gait.Pattern, error) {
	t.Helper()
	p, err := gait.NewTrottingPlanner(m)
	if err != nil {
		t.Fatal(err)
	}
	p.SetGaitPattern(r3.Vector{X: 0.15}, 0)
	if err := p.Reset(standing()); err != nil {
		t.Fatal(err)
	}
	return p.Plan(0.25, 0.5)
}
