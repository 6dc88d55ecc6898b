package mps

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/tensor"
)

// TruncateOptions bounds a two-site SVD split.
type TruncateOptions struct {
	// Cutoff discards singular values below Cutoff*sigma_max, the largest
	// singular value in the block. Zero disables the cutoff.
	Cutoff float64
	// MaxRank caps the number of kept singular values. Zero (or negative)
	// disables the cap.
	MaxRank int
}

// SplitResult is the outcome of a truncated two-site SVD split.
type SplitResult struct {
	Left, Right *tensor.Dense
	Values      []float64
	Discarded   float64 // total squared weight of discarded singular values, relative to the total.
}

// Split factorizes a two-site block of shape [chiLeft, d1, d2, chiRight]
// into left (shape [chiLeft, d1, r]) and right (shape [r, d2, chiRight])
// factors joined by r <= min(chiLeft*d1, d2*chiRight) singular values,
// applying opts' cutoff and max-rank policy.
// Singular values are folded into Right; Left is left-orthogonal. Use
// SplitFoldLeft when the caller instead needs Right right-orthogonal (a
// left-sweep step, where the site the sweep moves onto carries the norm).
func Split(block *tensor.Dense, d1, d2 int, opts TruncateOptions) (*SplitResult, error) {
	return split(block, d1, d2, opts, false)
}

// SplitFoldLeft is Split's mirror image: singular values are folded into
// Left instead of Right, and Right is orthogonal (V^H rows orthonormal).
func SplitFoldLeft(block *tensor.Dense, d1, d2 int, opts TruncateOptions) (*SplitResult, error) {
	return split(block, d1, d2, opts, true)
}

func split(block *tensor.Dense, d1, d2 int, opts TruncateOptions, foldLeft bool) (*SplitResult, error) {
	shape := block.Shape()
	if len(shape) != 4 {
		return nil, errors.Errorf("DIMENSION_MISMATCH: two-site block has rank %d, want 4", len(shape))
	}
	chiL, chiR := shape[0], shape[3]
	rows, cols := chiL*d1, d2*chiR

	m := mat.NewCDense(rows, cols, nil)
	for idx, v := range block.All() {
		row := idx[0]*d1 + idx[1]
		col := idx[2]*chiR + idx[3]
		m.Set(row, col, complex128(v))
	}

	u, svals, v, err := svdComplex(m)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r := chooseRank(svals, opts)
	if r == 0 {
		return nil, errors.Errorf("NUMERICAL_BREAKDOWN: truncation left rank zero")
	}

	var total, kept float64
	for _, s := range svals {
		total += s * s
	}
	for _, s := range svals[:r] {
		kept += s * s
	}
	discarded := 0.0
	if total > 0 {
		discarded = 1 - kept/total
	}

	left := tensor.Zeros(chiL, d1, r)
	for row := 0; row < rows; row++ {
		i0, i1 := row/d1, row%d1
		for k := 0; k < r; k++ {
			scale := complex(1.0, 0.0)
			if foldLeft {
				scale = complex(svals[k], 0)
			}
			left.SetAt([]int{i0, i1, k}, complex64(scale*u.At(row, k)))
		}
	}

	right := tensor.Zeros(r, d2, chiR)
	for k := 0; k < r; k++ {
		scale := complex(svals[k], 0)
		if foldLeft {
			scale = complex(1.0, 0.0)
		}
		for col := 0; col < cols; col++ {
			i0, i1 := col/chiR, col%chiR
			vhkc := cmplx.Conj(v.At(col, k))
			right.SetAt([]int{k, i0, i1}, complex64(scale*vhkc))
		}
	}

	return &SplitResult{Left: left, Right: right, Values: svals[:r], Discarded: discarded}, nil
}

// chooseRank applies the cutoff and max-rank policy to a descending list of
// singular values: the kept rank is the largest index k with
// svals[k-1] >= Cutoff*svals[0], capped at MaxRank and never below 1. The
// comparison is >=, so singular values exactly equal to the threshold are
// all kept (the larger index of a tie wins); values that differ from it
// only by rounding are compared as they are, with no tolerance.
func chooseRank(svals []float64, opts TruncateOptions) int {
	n := len(svals)
	r := n
	if opts.MaxRank > 0 && opts.MaxRank < r {
		r = opts.MaxRank
	}
	if opts.Cutoff > 0 && n > 0 {
		threshold := opts.Cutoff * svals[0]
		cut := 0
		for i := 0; i < n; i++ {
			if svals[i] >= threshold {
				cut = i + 1
			}
		}
		if cut < r {
			r = cut
		}
	}
	if r < 1 {
		r = 1
	}
	return r
}

// svdComplex computes the singular value decomposition of a complex m x n
// matrix via the Jordan-Wielandt embedding: the Hermitian augmented matrix
// J = [[0, A], [A^H, 0]] has eigenvalues {+-sigma_k} union zeros, and the
// eigenvectors for the positive sigma_k split into A's left/right singular
// vectors in their top/bottom halves. gonum's mat package has no complex
// SVD; this reuses the real-symmetric-embedding trick already used for
// Hermitian eigendecomposition in the site package, one level up.
func svdComplex(a *mat.CDense) (u *mat.CDense, svals []float64, v *mat.CDense, err error) {
	m, n := a.Dims()
	dim := m + n
	embed := mat.NewSymDense(2*dim, nil)
	// Populate the complex-Hermitian J's real 2*dim x 2*dim embedding
	// directly: J's (i,j) block for i<m<=j is A[i,j-m], its conjugate
	// transpose sits at (j,i).
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			aij := a.At(i, j)
			re, im := real(aij), imag(aij)
			// J[i, m+j] = aij (upper-right off-diagonal block of J).
			row, col := i, m+j
			embed.SetSym(row, col, re)
			embed.SetSym(row, dim+col, -im)
			embed.SetSym(dim+row, col, im)
			embed.SetSym(dim+row, dim+col, re)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embed, true); !ok {
		return nil, nil, nil, errors.Errorf("SOLVER_NON_CONVERGENCE: Jordan-Wielandt eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// vals is ascending; positive eigenvalues occupy the top half, in
	// ascending order, i.e. descending singular-value order lives in the
	// top half read backwards. The real embedding doubles every eigenvalue
	// of the complex Hermitian J (the same effect site.go's
	// hermitianEigenbasis steps around with idx = 2*k), so each distinct
	// singular value appears twice in a row once sorted descending; keep
	// only the first of each adjacent pair.
	type pair struct {
		val float64
		idx int
	}
	var positives []pair
	for k := 0; k < 2*dim; k++ {
		if vals[k] > 1e-10 {
			positives = append(positives, pair{vals[k], k})
		}
	}
	sort.Slice(positives, func(i, j int) bool { return positives[i].val > positives[j].val })

	rank := min(m, n)
	if len(positives)/2 < rank {
		rank = len(positives) / 2
	}
	svals = make([]float64, rank)
	u = mat.NewCDense(m, rank, nil)
	v = mat.NewCDense(n, rank, nil)
	for k := 0; k < rank; k++ {
		p := positives[2*k]
		svals[k] = p.val
		idx := p.idx

		// The eigenvector's u-part and v-part each carry half the total
		// unit norm (the Jordan-Wielandt eigenvector for +-sigma_k is
		// (u_k, +-v_k)/sqrt(2)), so normalizing each part on its own
		// already recovers a unit singular vector; no extra factor of 2.
		normU := 0.0
		for i := 0; i < m; i++ {
			re, im := vecs.At(i, idx), vecs.At(dim+i, idx)
			normU += re*re + im*im
		}
		if normU <= 0 {
			normU = 1
		}
		invU := 1 / math.Sqrt(normU)
		for i := 0; i < m; i++ {
			re, im := vecs.At(i, idx), vecs.At(dim+i, idx)
			u.Set(i, k, complex(re*invU, im*invU))
		}

		normV := 0.0
		for j := 0; j < n; j++ {
			re, im := vecs.At(m+j, idx), vecs.At(dim+m+j, idx)
			normV += re*re + im*im
		}
		if normV <= 0 {
			normV = 1
		}
		invV := 1 / math.Sqrt(normV)
		for j := 0; j < n; j++ {
			re, im := vecs.At(m+j, idx), vecs.At(dim+m+j, idx)
			v.Set(j, k, complex(re*invV, im*invV))
		}
	}
	return u, svals, v, nil
}
