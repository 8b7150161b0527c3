package viz

import (
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
)

// TopDown draws the feet and the CoM of state x seen from above on a
// w x h cell canvas. Stance feet are drawn as blobs tied to the CoM,
// swing feet as single dots.
func TopDown(m robot.Model, x dynamo.State, contacts []bool, w, h int) string {
	c := NewCanvas(w, h)
	q, _ := x.Split(m.DimQ())
	m.ForwardKinematics(q)
	com := m.CoM()
	c.SetView(com, 0.8)
	c.Blob(com, 1)
	for i, id := range m.ContactFrames() {
		foot := m.FramePosition(id)
		if i < len(contacts) && contacts[i] {
			c.Blob(foot, 1)
			c.Segment(com, foot)
		} else {
			c.Point(foot)
		}
	}
	return c.String()
}
