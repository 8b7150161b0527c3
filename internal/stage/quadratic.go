package stage

import (
	"gonum.org/v1/gonum/mat"
)

// Quadratic is the second-order model of a knot's cost and barrier over
// the stage tangent dx, du:
//
//	l(x+dx, u+du) ~ l + Lxᵀdx + Luᵀdu + ½dxᵀLxx dx + ½duᵀLuu du + duᵀLux dx
type Quadratic struct {
	Lx  *mat.VecDense
	Lu  *mat.VecDense
	Lxx *mat.Dense
	Luu *mat.Dense
	Lux *mat.Dense
}

func NewQuadratic(nx, nu int) *Quadratic {
	return &Quadratic{
		Lx:  mat.NewVecDense(nx, nil),
		Lu:  mat.NewVecDense(max(nu, 1), nil),
		Lxx: mat.NewDense(nx, nx, nil),
		Luu: mat.NewDense(max(nu, 1), max(nu, 1), nil),
		Lux: mat.NewDense(max(nu, 1), nx, nil),
	}
}

func (q *Quadratic) Reset() {
	q.Lx.Zero()
	q.Lu.Zero()
	q.Lxx.Zero()
	q.Luu.Zero()
	q.Lux.Zero()
}

// AddDiagX adds a separable term with gradient g and curvature h on
// coordinate i of x.
func (q *Quadratic) AddDiagX(i int, g, h float64) {
	q.Lx.SetVec(i, q.Lx.AtVec(i)+g)
	q.Lxx.Set(i, i, q.Lxx.At(i, i)+h)
}

// AddDiagU is AddDiagX for coordinate i of u.
func (q *Quadratic) AddDiagU(i int, g, h float64) {
	q.Lu.SetVec(i, q.Lu.AtVec(i)+g)
	q.Luu.Set(i, i, q.Luu.At(i, i)+h)
}

// AddRow adds the Gauss-Newton model of a scalar function r(x, u) with
// gradient rows rowX and rowU, outer derivative g and curvature h:
// gradient g*∇r and Hessian h*∇r∇rᵀ. rowU may be nil and rowX may be
// shorter than nx, in which case it covers the leading coordinates.
func (q *Quadratic) AddRow(rowX, rowU []float64, g, h float64) {
	lx := q.Lx.RawVector().Data
	for i, a := range rowX {
		if a == 0 {
			continue
		}
		lx[i] += g * a
		if h == 0 {
			continue
		}
		xx := q.Lxx.RawRowView(i)
		for j, b := range rowX {
			xx[j] += h * a * b
		}
	}
	if rowU == nil {
		return
	}
	lu := q.Lu.RawVector().Data
	for i, a := range rowU {
		if a == 0 {
			continue
		}
		lu[i] += g * a
		if h == 0 {
			continue
		}
		uu := q.Luu.RawRowView(i)
		for j, b := range rowU {
			uu[j] += h * a * b
		}
		ux := q.Lux.RawRowView(i)
		for j, b := range rowX {
			ux[j] += h * a * b
		}
	}
}
