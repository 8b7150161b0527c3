package constraint

import (
	"math"

	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/stage"
)

// DefaultFacets is the number of half-spaces of the polyhedral cone.
const DefaultFacets = 8

// FrictionCone bounds the contact force of every active contact by a
// polyhedral cone inscribed in the Coulomb cone:
//
//	cos(θi)·fx + sin(θi)·fy - μ·cos(π/n)·fz <= 0,  θi = 2πi/n
//
// The coefficient is read from the knot's contact status, falling back
// to the cone's own coefficient when the status carries none.
type FrictionCone struct {
	mu     float64
	facets int
	cos    []float64
	sin    []float64
	inner  float64
}

func NewFrictionCone(mu float64, facets int) (*FrictionCone, error) {
	if !(mu > 0) {
		return nil, dynamo.Configf("friction coefficient must be positive, got %g", mu)
	}
	if facets < 3 {
		return nil, dynamo.Configf("friction cone needs at least 3 facets, got %d", facets)
	}
	fc := &FrictionCone{
		mu:     mu,
		facets: facets,
		cos:    make([]float64, facets),
		sin:    make([]float64, facets),
		inner:  math.Cos(math.Pi / float64(facets)),
	}
	for i := 0; i < facets; i++ {
		fc.sin[i], fc.cos[i] = math.Sincos(2 * math.Pi * float64(i) / float64(facets))
	}
	return fc, nil
}

func (f *FrictionCone) Name() string { return "friction_cone" }
func (f *FrictionCone) Mu() float64 { return f.mu }
func (f *FrictionCone) Facets() int { return f.facets }

func (f *FrictionCone) coefficient(d *stage.Data, c int) float64 {
	if c < len(d.Contacts.Mu) && d.Contacts.Mu[c] > 0 {
		return d.Contacts.Mu[c]
	}
	return f.mu
}

func (f *FrictionCone) Values(d *stage.Data, dst []float64) []float64 {
	for c, active := range d.Contacts.Active {
		if !active {
			continue
		}
		fz := f.inner * f.coefficient(d, c)
		force := d.Forces[c]
		for i := 0; i < f.facets; i++ {
			dst = append(dst, f.cos[i]*force.X+f.sin[i]*force.Y-fz*force.Z)
		}
	}
	return dst
}

func (f *FrictionCone) Linearize(d *stage.Data, b Barrier, q *stage.Quadratic) float64 {
	nx, nu := len(d.X), len(d.U)
	rowX := make([]float64, nx)
	rowU := make([]float64, nu)
	sum := 0.0
	for c, active := range d.Contacts.Active {
		if !active {
			continue
		}
		mc := f.inner * f.coefficient(d, c)
		force := d.Forces[c]
		xx, ux := d.ForceRow(c, 0)
		xy, uy := d.ForceRow(c, 1)
		xz, uz := d.ForceRow(c, 2)
		for i := 0; i < f.facets; i++ {
			ci, si := f.cos[i], f.sin[i]
			g := ci*force.X + si*force.Y - mc*force.Z
			sum += b.Value(g)
			d1, d2 := b.Derivatives(g)
			for k := 0; k < nx; k++ {
				rowX[k] = ci*xx[k] + si*xy[k] - mc*xz[k]
			}
			for k := 0; k < nu; k++ {
				rowU[k] = ci*ux[k] + si*uy[k] - mc*uz[k]
			}
			q.AddRow(rowX, rowU, d1, d2)
		}
	}
	return sum
}
