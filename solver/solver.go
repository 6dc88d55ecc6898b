// Package solver implements the two small numerical kernels a sweep step
// needs on top of an effham.Operator: a Lanczos eigensolver for DMRG's
// ground-state update, and a Krylov (Lanczos) matrix-exponential solver for
// TDVP's local time propagation. Both share the same tridiagonal Lanczos
// basis construction, grounded on mps/mps.go's use of
// github.com/fumin/tensor's tensor.Arnoldi for the analogous single-site
// Krylov eigenproblem.
package solver

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/tensor"

	"github.com/fumin/mpscore/effham"
)

// Options bounds a Lanczos run.
type Options struct {
	MaxIter int
	Tol     float64
	// ReorthEvery re-orthogonalizes the newest Krylov vector against every
	// previous one every this many steps, guarding against the loss of
	// orthogonality full Lanczos is prone to (selective reorthogonalization).
	// Zero means reorthogonalize every step.
	ReorthEvery int
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = 64
	}
	if o.Tol <= 0 {
		o.Tol = 1e-9
	}
	return o
}

// GroundState runs Lanczos on the Hermitian operator op, starting from x0,
// and returns the lowest Ritz value and its Ritz vector as a flat tensor of
// length op.Dim().
func GroundState(op effham.Operator, x0 *tensor.Dense, opts Options) (float64, *tensor.Dense, error) {
	opts = opts.withDefaults()
	basis, alphas, betas, x0Norm, err := lanczosBasis(op, x0, opts)
	if err != nil {
		return 0, nil, errors.Wrap(err, "")
	}
	if x0Norm < 1e-14 {
		return 0, nil, errors.Errorf("NUMERICAL_BREAKDOWN: initial vector has zero norm")
	}

	m := len(alphas)
	t := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		t.SetSym(i, i, alphas[i])
		if i+1 < m {
			t.SetSym(i, i+1, betas[i])
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(t, true); !ok {
		return 0, nil, errors.Errorf("SOLVER_NON_CONVERGENCE: tridiagonal eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	ground := vals[0]
	ritz := tensor.Zeros(op.Dim())
	for k := 0; k < m; k++ {
		c := complex64(vecs.At(k, 0))
		axpy(ritz, c, basis[k])
	}
	return ground, ritz, nil
}

// Evolve applies exp(c * op) to x0 over a Krylov subspace of dimension up to
// opts.MaxIter, for TDVP's local propagation: c = -i*dt for real time,
// c = -dt for imaginary time.
func Evolve(op effham.Operator, x0 *tensor.Dense, c complex128, opts Options) (*tensor.Dense, error) {
	opts = opts.withDefaults()
	basis, alphas, betas, x0Norm, err := lanczosBasis(op, x0, opts)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if x0Norm < 1e-14 {
		return tensor.Zeros(op.Dim()), nil
	}

	m := len(alphas)
	t := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		t.SetSym(i, i, alphas[i])
		if i+1 < m {
			t.SetSym(i, i+1, betas[i])
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(t, true); !ok {
		return nil, errors.Errorf("SOLVER_NON_CONVERGENCE: tridiagonal eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// exp(c*T) e1, expanded in the Lanczos basis (EXPOKIT-style Krylov
	// exponential action).
	coeffs := make([]complex128, m)
	for k := 0; k < m; k++ {
		var sum complex128
		for j := 0; j < m; j++ {
			sum += complex(vecs.At(k, j), 0) * cmplx.Exp(c*complex(vals[j], 0)) * complex(vecs.At(0, j), 0)
		}
		coeffs[k] = sum
	}

	result := tensor.Zeros(op.Dim())
	for k := 0; k < m; k++ {
		axpy(result, complex64(complex128(complex(x0Norm, 0))*coeffs[k]), basis[k])
	}
	return result, nil
}

// lanczosBasis builds the real symmetric tridiagonal Lanczos representation
// of op restricted to a Krylov subspace generated from x0.
func lanczosBasis(op effham.Operator, x0 *tensor.Dense, opts Options) (basis []*tensor.Dense, alphas, betas []float64, x0Norm float64, err error) {
	x0Norm = norm(x0)
	if x0Norm < 1e-14 {
		return nil, nil, nil, x0Norm, nil
	}
	v := scaled(x0, complex64(complex(1/x0Norm, 0)))
	var vPrev *tensor.Dense
	betaPrev := 0.0

	maxIter := opts.MaxIter
	if maxIter > op.Dim() {
		maxIter = op.Dim()
	}

	for k := 0; k < maxIter; k++ {
		w := op.MatVec(v)
		alpha := real(dot(v, w))
		axpy(w, complex64(complex(-alpha, 0)), v)
		if vPrev != nil {
			axpy(w, complex64(complex(-betaPrev, 0)), vPrev)
		}

		if opts.ReorthEvery <= 0 || k%max(opts.ReorthEvery, 1) == 0 {
			for _, b := range basis {
				proj := dot(b, w)
				axpy(w, complex64(-proj), b)
			}
		}

		basis = append(basis, v)
		alphas = append(alphas, alpha)

		beta := norm(w)
		if beta < opts.Tol {
			break
		}
		betas = append(betas, beta)
		vPrev = v
		v = scaled(w, complex64(complex(1/beta, 0)))
		betaPrev = beta
	}
	return basis, alphas, betas, x0Norm, nil
}

func dot(a, b *tensor.Dense) complex128 {
	var sum complex128
	for idx, av := range a.All() {
		sum += complex128(cmplx64Conj(av)) * complex128(b.At(idx...))
	}
	return sum
}

func cmplx64Conj(v complex64) complex64 {
	return complex(real(v), -imag(v))
}

func norm(a *tensor.Dense) float64 {
	return math.Sqrt(cmplx.Abs(dot(a, a)))
}

func axpy(dst *tensor.Dense, c complex64, src *tensor.Dense) {
	for idx, sv := range src.All() {
		dst.SetAt(idx, dst.At(idx...)+c*sv)
	}
}

func scaled(a *tensor.Dense, c complex64) *tensor.Dense {
	out := tensor.Zeros(a.Shape()...)
	for idx, v := range a.All() {
		out.SetAt(idx, c*v)
	}
	return out
}
