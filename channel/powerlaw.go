package channel

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidFit is returned when the sum-of-exponentials fit violates the
// eigenvalue-modulus bound or the max-relative-error bound.
var ErrInvalidFit = errors.New("INVALID_FIT")

const fitEpsilon = 1e-8

// ExpTerm is one term nu_k * lambda_k^r of a sum-of-exponentials fit.
type ExpTerm struct {
	Nu     complex128
	Lambda complex128
}

// FitOptions bounds the accepted fit.
type FitOptions struct {
	// MaxRelError is the maximum allowed relative error over r in [1, N].
	// Zero selects a default of 5%.
	MaxRelError float64
}

func (o FitOptions) withDefaults() FitOptions {
	if o.MaxRelError <= 0 {
		o.MaxRelError = 0.05
	}
	return o
}

// Fit approximates f(r) = 1/r^alpha on integer r in [1, N] by a sum of K
// exponentials:
//  1. F[k] = 1/k^alpha, k = 1..N.
//  2. Hankel-like M[i,j] = F[i+j-1], i = 1..N-K+1, j = 1..K.
//  3. Thin QR of M; Q1 = rows 1..N-K, Q2 = rows 2..N-K+1.
//  4. V = pinv(Q1) Q2; eigenvalues of V are {lambda_k}.
//  5. Lambda[k,j] = lambda_j^k, k=1..N; solve nu = Lambda \ F (least squares).
func Fit(alpha float64, k, n int, opts ...FitOptions) ([]ExpTerm, error) {
	opt := FitOptions{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	opt = opt.withDefaults()

	if k < 1 || n < k {
		return nil, errors.Errorf("CONFIG_INVALID: require 1<=K<=N, got K=%d N=%d", k, n)
	}

	f := make([]float64, n)
	for i := 0; i < n; i++ {
		f[i] = 1 / math.Pow(float64(i+1), alpha)
	}

	rows := n - k + 1
	m := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < k; j++ {
			m.Set(i, j, f[i+j])
		}
	}

	var qr mat.QR
	qr.Factorize(m)
	var q mat.Dense
	qr.QTo(&q)

	q1 := q.Slice(0, rows-1, 0, k).(*mat.Dense)
	q2 := q.Slice(1, rows, 0, k).(*mat.Dense)

	v, err := pinvSolve(q1, q2)
	if err != nil {
		return nil, errors.Wrap(err, "INVALID_FIT: could not solve for transfer matrix V")
	}

	var eig mat.Eigen
	if ok := eig.Factorize(v, mat.EigenRight); !ok {
		return nil, errors.Errorf("INVALID_FIT: eigendecomposition of transfer matrix failed")
	}
	lambdas := eig.Values(nil)
	for _, lam := range lambdas {
		if cmplx.Abs(lam) >= 1+fitEpsilon {
			return nil, errors.Wrapf(ErrInvalidFit, "|lambda|=%v >= 1", cmplx.Abs(lam))
		}
	}

	lambdaMat := mat.NewCDense(n, k, nil)
	for row := 0; row < n; row++ {
		r := row + 1
		for j, lam := range lambdas {
			lambdaMat.Set(row, j, cmplx.Pow(lam, complex(float64(r), 0)))
		}
	}
	fVec := mat.NewCDense(n, 1, nil)
	for i := 0; i < n; i++ {
		fVec.Set(i, 0, complex(f[i], 0))
	}
	nu, err := lstsqComplex(lambdaMat, fVec)
	if err != nil {
		return nil, errors.Wrap(err, "INVALID_FIT: least-squares amplitude solve failed")
	}

	terms := make([]ExpTerm, k)
	for j := 0; j < k; j++ {
		terms[j] = ExpTerm{Nu: nu[j], Lambda: lambdas[j]}
	}

	maxRelErr := maxRelativeError(terms, alpha, n)
	if maxRelErr > opt.MaxRelError {
		return nil, errors.Wrapf(ErrInvalidFit, "max relative error %v exceeds bound %v", maxRelErr, opt.MaxRelError)
	}

	return terms, nil
}

func maxRelativeError(terms []ExpTerm, alpha float64, n int) float64 {
	var worst float64
	for r := 1; r <= n; r++ {
		exact := 1 / math.Pow(float64(r), alpha)
		var approx complex128
		for _, t := range terms {
			approx += t.Nu * cmplx.Pow(t.Lambda, complex(float64(r), 0))
		}
		relErr := cmplx.Abs(complex(exact, 0)-approx) / exact
		if relErr > worst {
			worst = relErr
		}
	}
	return worst
}

// pinvSolve returns pinv(a)*b for real dense a, b, guarding the pseudo
// inverse with a relative singular-value cutoff rather than inverting a
// possibly ill-conditioned square matrix directly.
func pinvSolve(a, b *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.Errorf("SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	svals := svd.Values(nil)

	const relCutoff = 1e-12
	var sMax float64
	for _, s := range svals {
		if s > sMax {
			sMax = s
		}
	}
	cutoff := relCutoff * sMax

	_, uc := u.Dims()
	utb := mat.NewDense(uc, b.RawMatrix().Cols, nil)
	utb.Mul(u.T(), b)

	rows, cols := utb.Dims()
	scaled := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		var inv float64
		if svals[i] > cutoff {
			inv = 1 / svals[i]
		}
		for j := 0; j < cols; j++ {
			scaled.Set(i, j, utb.At(i, j)*inv)
		}
	}

	vr, _ := v.Dims()
	result := mat.NewDense(vr, cols, nil)
	result.Mul(&v, scaled)
	return result, nil
}

// lstsqComplex solves min ||a x - b||_2 for complex a (n x k, n>=k) via the
// normal equations a^H a x = a^H b, solved by solveComplexSquare. Unlike
// pinvSolve there is no singular-value cutoff: a pivot below 1e-14 is
// reported as a singular system.
func lstsqComplex(a, b *mat.CDense) ([]complex128, error) {
	n, k := a.Dims()
	aH := mat.NewCDense(k, n, nil)
	// (A^H)[i,j] = conj(A[j,i]).
	for i := 0; i < k; i++ {
		for j := 0; j < n; j++ {
			aH.Set(i, j, cmplx.Conj(a.At(j, i)))
		}
	}

	ata := mat.NewCDense(k, k, nil)
	cmatMul(ata, aH, a)
	atb := mat.NewCDense(k, 1, nil)
	cmatMul(atb, aH, b)

	x, err := solveComplexSquare(ata, atb)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	result := make([]complex128, k)
	for i := 0; i < k; i++ {
		result[i] = x.At(i, 0)
	}
	return result, nil
}

// cmatMul sets dst = a*b for complex dense matrices. gonum's mat.CDense
// does not expose Mul, so this multiplies element-by-element via At/Set.
func cmatMul(dst, a, b *mat.CDense) {
	ar, ac := a.Dims()
	_, bc := b.Dims()
	for i := 0; i < ar; i++ {
		for j := 0; j < bc; j++ {
			var sum complex128
			for l := 0; l < ac; l++ {
				sum += a.At(i, l) * b.At(l, j)
			}
			dst.Set(i, j, sum)
		}
	}
}

// solveComplexSquare solves a x = b for small complex square systems via
// Gauss-Jordan elimination with partial pivoting. gonum's mat package does
// not expose a general complex linear solve; the systems here are the K x K
// (K on the order of ten) normal-equation systems from the power-law fit,
// well within the size where a direct elimination is both simple and
// numerically adequate given the SVD-guarded conditioning upstream.
func solveComplexSquare(a, b *mat.CDense) (*mat.CDense, error) {
	n, _ := a.Dims()
	_, cols := b.Dims()

	aug := make([][]complex128, n)
	for i := range aug {
		aug[i] = make([]complex128, n+cols)
		for j := 0; j < n; j++ {
			aug[i][j] = a.At(i, j)
		}
		for j := 0; j < cols; j++ {
			aug[i][n+j] = b.At(i, j)
		}
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := cmplx.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := cmplx.Abs(aug[r][col]); v > best {
				pivot, best = r, v
			}
		}
		if best < 1e-14 {
			return nil, errors.Errorf("singular system at column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for j := col; j < n+cols; j++ {
			aug[col][j] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for j := col; j < n+cols; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	x := mat.NewCDense(n, cols, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < cols; j++ {
			x.Set(i, j, aug[i][n+j])
		}
	}
	return x, nil
}
