package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legmpc/internal/dynamo"
)

var errNotPositiveDefinite = errors.New("Quu + ρI is not positive definite")

// riccati holds the scratch matrices of the backward pass.
type riccati struct {
	nx, nu int

	vx  *mat.VecDense
	vxx *mat.Dense

	qx  *mat.VecDense
	qu  *mat.VecDense
	qxx *mat.Dense
	quu *mat.Dense
	qux *mat.Dense
	reg *mat.SymDense

	atVxx *mat.Dense
	btVxx *mat.Dense
	tmpXX *mat.Dense
	tmpX  *mat.VecDense
	tmpU  *mat.VecDense
	chol  mat.Cholesky

	// k and K are the feedforward steps and feedback gains per knot.
	k []*mat.VecDense
	K []*mat.Dense

	dv1, dv2 float64
}

func newRiccati(nx, nu, capacity int) *riccati {
	nu = max(nu, 1)
	r := &riccati{
		nx: nx, nu: nu,
		vx:    mat.NewVecDense(nx, nil),
		vxx:   mat.NewDense(nx, nx, nil),
		qx:    mat.NewVecDense(nx, nil),
		qu:    mat.NewVecDense(nu, nil),
		qxx:   mat.NewDense(nx, nx, nil),
		quu:   mat.NewDense(nu, nu, nil),
		qux:   mat.NewDense(nu, nx, nil),
		reg:   mat.NewSymDense(nu, nil),
		atVxx: mat.NewDense(nx, nx, nil),
		btVxx: mat.NewDense(nu, nx, nil),
		tmpXX: mat.NewDense(nx, nx, nil),
		tmpX:  mat.NewVecDense(nx, nil),
		tmpU:  mat.NewVecDense(nu, nil),
		k:     make([]*mat.VecDense, capacity),
		K:     make([]*mat.Dense, capacity),
	}
	for i := range r.k {
		r.k[i] = mat.NewVecDense(nu, nil)
		r.K[i] = mat.NewDense(nu, nx, nil)
	}
	return r
}

// backward runs the Riccati recursion over the n knots of lq with
// regularization rho. The value function is propagated with the
// unregularized Quu.
func (r *riccati) backward(lq []*LQ, n int, rho float64) error {
	last := lq[n-1].Q
	r.vx.CopyVec(last.Lx)
	r.vxx.Copy(last.Lxx)
	r.dv1, r.dv2 = 0, 0

	for i := n - 2; i >= 0; i-- {
		m := lq[i]
		// Qx = Lx + AᵀVx, Qu = Lu + BᵀVx
		r.qx.MulVec(m.A.T(), r.vx)
		r.qx.AddVec(r.qx, m.Q.Lx)
		r.qu.MulVec(m.B.T(), r.vx)
		r.qu.AddVec(r.qu, m.Q.Lu)

		// Qxx = Lxx + AᵀVxxA, Quu = Luu + BᵀVxxB, Qux = Lux + BᵀVxxA
		r.atVxx.Mul(m.A.T(), r.vxx)
		r.qxx.Mul(r.atVxx, m.A)
		r.qxx.Add(r.qxx, m.Q.Lxx)
		r.btVxx.Mul(m.B.T(), r.vxx)
		r.quu.Mul(r.btVxx, m.B)
		r.quu.Add(r.quu, m.Q.Luu)
		r.qux.Mul(r.btVxx, m.A)
		r.qux.Add(r.qux, m.Q.Lux)

		for a := 0; a < r.nu; a++ {
			for b := a; b < r.nu; b++ {
				v := 0.5 * (r.quu.At(a, b) + r.quu.At(b, a))
				if a == b {
					v += rho
				}
				r.reg.SetSym(a, b, v)
			}
		}
		if ok := r.chol.Factorize(r.reg); !ok {
			return fmt.Errorf("knot %d: %w", i, errNotPositiveDefinite)
		}

		// k = -Quu⁻¹Qu, K = -Quu⁻¹Qux
		k, K := r.k[i], r.K[i]
		if err := r.chol.SolveVecTo(k, r.qu); err != nil {
			return fmt.Errorf("knot %d: %w", i, err)
		}
		k.ScaleVec(-1, k)
		if err := r.chol.SolveTo(K, r.qux); err != nil {
			return fmt.Errorf("knot %d: %w", i, err)
		}
		K.Scale(-1, K)

		r.dv1 += mat.Dot(k, r.qu)
		r.tmpU.MulVec(r.quu, k)
		r.dv2 += 0.5 * mat.Dot(k, r.tmpU)

		// Vx = Qx + KᵀQuu k + KᵀQu + Quxᵀk
		r.vx.CopyVec(r.qx)
		r.tmpX.MulVec(K.T(), r.tmpU)
		r.vx.AddVec(r.vx, r.tmpX)
		r.tmpX.MulVec(K.T(), r.qu)
		r.vx.AddVec(r.vx, r.tmpX)
		r.tmpX.MulVec(r.qux.T(), k)
		r.vx.AddVec(r.vx, r.tmpX)

		// Vxx = Qxx + KᵀQuuK + KᵀQux + QuxᵀK
		r.vxx.Copy(r.qxx)
		r.btVxx.Mul(r.quu, K)
		r.tmpXX.Mul(K.T(), r.btVxx)
		r.vxx.Add(r.vxx, r.tmpXX)
		r.tmpXX.Mul(K.T(), r.qux)
		r.vxx.Add(r.vxx, r.tmpXX)
		r.tmpXX.Mul(r.qux.T(), K)
		r.vxx.Add(r.vxx, r.tmpXX)
		symmetrize(r.vxx)

		if !finite(r.vx.RawVector().Data) {
			return fmt.Errorf("knot %d: non-finite value gradient", i)
		}
	}
	return nil
}

// expected is the predicted merit change of a step of size alpha.
func (r *riccati) expected(alpha float64) float64 {
	return alpha*r.dv1 + alpha*alpha*r.dv2
}

func symmetrize(m *mat.Dense) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

func finite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// costate runs the adjoint recursion λ_i = Lx + Aᵀλ_{i+1} and returns
// the norm of the control gradients Lu + Bᵀλ_{i+1}.
func costate(lq []*LQ, n int, lambda []dynamo.State) float64 {
	nx := len(lambda[0])
	next := mat.NewVecDense(nx, append([]float64(nil), lq[n-1].Q.Lx.RawVector().Data...))
	copy(lambda[n-1], next.RawVector().Data)
	var g, lam mat.VecDense
	sum := 0.0
	for i := n - 2; i >= 0; i-- {
		m := lq[i]
		g.MulVec(m.B.T(), next)
		g.AddVec(&g, m.Q.Lu)
		sum += mat.Dot(&g, &g)
		lam.MulVec(m.A.T(), next)
		lam.AddVec(&lam, m.Q.Lx)
		copy(lambda[i], lam.RawVector().Data)
		next.CopyVec(&lam)
	}
	return math.Sqrt(sum)
}
