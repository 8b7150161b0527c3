package cost

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/reference"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/stage"
)

// TrackWeights are diagonal weights of a 3D tracking term.
type TrackWeights struct {
	Running  r3.Vector
	Terminal r3.Vector
	Impulse  r3.Vector
}

func (w TrackWeights) at(d *stage.Data) (running, extra r3.Vector) {
	switch d.Kind {
	case stage.Terminal:
		return r3.Vector{}, w.Terminal
	case stage.Impulse:
		return w.Running.Mul(d.Dt), w.Impulse
	default:
		return w.Running.Mul(d.Dt), r3.Vector{}
	}
}

func (w TrackWeights) validate(name string) error {
	for _, v := range []r3.Vector{w.Running, w.Terminal, w.Impulse} {
		if !(v.X >= 0 && v.Y >= 0 && v.Z >= 0) {
			return dynamo.Configf("%s weights must be non-negative", name)
		}
	}
	return nil
}

// track3D evaluates ½ eᵀWe for e = p - ref with Gauss-Newton curvature
// JᵀWJ over the configuration block.
func track3D(p, ref, w r3.Vector, jac *mat.Dense, q *stage.Quadratic) float64 {
	e := p.Sub(ref)
	comp := [3]float64{e.X, e.Y, e.Z}
	ws := [3]float64{w.X, w.Y, w.Z}
	value := 0.0
	for k := 0; k < 3; k++ {
		if ws[k] == 0 {
			continue
		}
		value += 0.5 * ws[k] * comp[k] * comp[k]
		if q != nil {
			q.AddRow(jac.RawRowView(k), nil, ws[k]*comp[k], ws[k])
		}
	}
	return value
}

// TaskSpace3D tracks the position of one frame.
type TaskSpace3D struct {
	name    string
	frame   robot.FrameID
	contact int
	track   reference.Track
	weights TrackWeights
}

// NewTaskSpace3D tracks frame against a fixed track.
func NewTaskSpace3D(name string, frame robot.FrameID, track reference.Track, w TrackWeights) (*TaskSpace3D, error) {
	if err := w.validate(name); err != nil {
		return nil, err
	}
	return &TaskSpace3D{name: name, frame: frame, contact: -1, track: track, weights: w}, nil
}

// NewFootTracking tracks the frame of a contact; BindTracks replaces its
// target by the foot track of that contact.
func NewFootTracking(m robot.Model, contact int, w TrackWeights) (*TaskSpace3D, error) {
	frames := m.ContactFrames()
	if contact < 0 || contact >= len(frames) {
		return nil, dynamo.Configf("contact index %d out of range [0, %d)", contact, len(frames))
	}
	id := frames[contact]
	t, err := NewTaskSpace3D(m.FrameName(id), id, nil, w)
	if err != nil {
		return nil, err
	}
	t.contact = contact
	return t, nil
}

func (t *TaskSpace3D) Name() string { return "task_space_3d:" + t.name }
func (t *TaskSpace3D) Frame() robot.FrameID { return t.frame }
func (t *TaskSpace3D) Track() reference.Track { return t.track }
func (t *TaskSpace3D) SetTrack(track reference.Track) { t.track = track }

func (t *TaskSpace3D) BindTracks(g *reference.Generator) {
	if t.contact >= 0 {
		t.track = g.Foot(t.contact)
	}
}

func (t *TaskSpace3D) eval(d *stage.Data, q *stage.Quadratic) float64 {
	if t.track == nil {
		return 0
	}
	running, extra := t.weights.at(d)
	if q != nil {
		d.Model.FrameJacobian(t.frame, d.Jac)
	}
	p := d.Model.FramePosition(t.frame)
	ref := t.track.Position(d.T)
	return track3D(p, ref, running, d.Jac, q) + track3D(p, ref, extra, d.Jac, q)
}

func (t *TaskSpace3D) Evaluate(d *stage.Data) float64 { return t.eval(d, nil) }

func (t *TaskSpace3D) Linearize(d *stage.Data, q *stage.Quadratic) float64 { return t.eval(d, q) }
