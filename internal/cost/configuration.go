package cost

import (
	"go.uber.org/multierr"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/robot"
	"github.com/san-kum/legmpc/internal/stage"
)

// ConfigurationWeights are the diagonal weights of a Configuration term.
// Nil slices mean all-zero weights. Position weights act on q - QRef.
type ConfigurationWeights struct {
	QRef []float64

	Q []float64
	V []float64
	U []float64

	QF []float64
	VF []float64

	QI  []float64
	VI  []float64
	DVI []float64
}

func (w ConfigurationWeights) validate(nq, nv, nu int) error {
	var err error
	if w.QRef != nil {
		err = multierr.Append(err, dynamo.CheckDim("q_ref", len(w.QRef), nq))
	}
	for _, f := range []struct {
		name string
		w    []float64
		dim  int
	}{
		{"q_weight", w.Q, nv},
		{"v_weight", w.V, nv},
		{"u_weight", w.U, nu},
		{"qf_weight", w.QF, nv},
		{"vf_weight", w.VF, nv},
		{"qi_weight", w.QI, nv},
		{"vi_weight", w.VI, nv},
		{"dvi_weight", w.DVI, nv},
	} {
		if f.w == nil {
			continue
		}
		if e := dynamo.CheckDim(f.name, len(f.w), f.dim); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		for i, x := range f.w {
			if !(x >= 0) {
				err = multierr.Append(err, dynamo.Configf("%s[%d] must be non-negative, got %g", f.name, i, x))
			}
		}
	}
	return err
}

// Configuration penalizes deviation from a reference configuration, the
// generalized velocity and the joint torques. At impulse knots it also
// penalizes the pre-impact state and the velocity jump.
type Configuration struct {
	nq, nv, nu int
	vOffset    int
	w          ConfigurationWeights
}

func NewConfiguration(m robot.Model, w ConfigurationWeights) (*Configuration, error) {
	nq, nv, nu := m.DimQ(), m.DimV(), m.DimU()
	if nq != nv {
		return nil, dynamo.Configf("configuration cost needs dim q == dim v, got %d and %d", nq, nv)
	}
	if err := w.validate(nq, nv, nu); err != nil {
		return nil, err
	}
	w.QRef = orZero(w.QRef, nq)
	w.Q, w.V, w.U = orZero(w.Q, nv), orZero(w.V, nv), orZero(w.U, nu)
	w.QF, w.VF = orZero(w.QF, nv), orZero(w.VF, nv)
	w.QI, w.VI, w.DVI = orZero(w.QI, nv), orZero(w.VI, nv), orZero(w.DVI, nv)
	return &Configuration{nq: nq, nv: nv, nu: nu, vOffset: nq, w: w}, nil
}

func orZero(w []float64, n int) []float64 {
	if w == nil {
		return make([]float64, n)
	}
	return append([]float64(nil), w...)
}

func (c *Configuration) Name() string { return "configuration" }

// Weights returns a copy of the weights in use.
func (c *Configuration) Weights() ConfigurationWeights {
	w := c.w
	for _, s := range []*[]float64{&w.QRef, &w.Q, &w.V, &w.U, &w.QF, &w.VF, &w.QI, &w.VI, &w.DVI} {
		*s = append([]float64(nil), (*s)...)
	}
	return w
}

// Breakdown is the per-coordinate contribution of a Configuration term.
type Breakdown struct {
	Q  []float64
	V  []float64
	U  []float64
	DV []float64
}

func (b Breakdown) Total() float64 {
	sum := 0.0
	for _, part := range [][]float64{b.Q, b.V, b.U, b.DV} {
		for _, x := range part {
			sum += x
		}
	}
	return sum
}

// stageWeights selects the position and velocity weights and their
// multiplier for the knot kind.
func (c *Configuration) stageWeights(d *stage.Data) (wq, wv []float64, scale float64) {
	if d.Kind == stage.Terminal {
		return c.w.QF, c.w.VF, 1
	}
	return c.w.Q, c.w.V, d.Dt
}

// Breakdown evaluates every weighted coordinate separately. A coordinate
// with zero weight contributes exactly zero.
func (c *Configuration) Breakdown(d *stage.Data) Breakdown {
	b := Breakdown{
		Q:  make([]float64, c.nv),
		V:  make([]float64, c.nv),
		U:  make([]float64, c.nu),
		DV: make([]float64, c.nv),
	}
	wq, wv, scale := c.stageWeights(d)
	for i := 0; i < c.nv; i++ {
		e := d.Q[i] - c.w.QRef[i]
		b.Q[i] = weighted(scale*wq[i], e)
		b.V[i] = weighted(scale*wv[i], d.V[i])
	}
	if d.Kind != stage.Terminal {
		for i := 0; i < c.nu; i++ {
			b.U[i] = weighted(d.Dt*c.w.U[i], d.U[i])
		}
	}
	if d.Kind == stage.Impulse {
		for i := 0; i < c.nv; i++ {
			b.Q[i] += weighted(c.w.QI[i], d.Q[i]-c.w.QRef[i])
			b.V[i] += weighted(c.w.VI[i], d.V[i])
			b.DV[i] = weighted(c.w.DVI[i], d.DeltaV[i])
		}
	}
	return b
}

func weighted(w, e float64) float64 {
	if w == 0 {
		return 0
	}
	return 0.5 * w * e * e
}

func (c *Configuration) Evaluate(d *stage.Data) float64 {
	return c.Breakdown(d).Total()
}

func (c *Configuration) Linearize(d *stage.Data, q *stage.Quadratic) float64 {
	wq, wv, scale := c.stageWeights(d)
	for i := 0; i < c.nv; i++ {
		if w := scale * wq[i]; w != 0 {
			q.AddDiagX(i, w*(d.Q[i]-c.w.QRef[i]), w)
		}
		if w := scale * wv[i]; w != 0 {
			q.AddDiagX(c.vOffset+i, w*d.V[i], w)
		}
	}
	if d.Kind != stage.Terminal {
		for i := 0; i < c.nu; i++ {
			if w := d.Dt * c.w.U[i]; w != 0 {
				q.AddDiagU(i, w*d.U[i], w)
			}
		}
	}
	if d.Kind == stage.Impulse {
		for i := 0; i < c.nv; i++ {
			if w := c.w.QI[i]; w != 0 {
				q.AddDiagX(i, w*(d.Q[i]-c.w.QRef[i]), w)
			}
			if w := c.w.VI[i]; w != 0 {
				q.AddDiagX(c.vOffset+i, w*d.V[i], w)
			}
			if w := c.w.DVI[i]; w != 0 {
				q.AddRow(d.DeltaVJac.RawRowView(i), nil, w*d.DeltaV[i], w)
			}
		}
	}
	return c.Evaluate(d)
}
