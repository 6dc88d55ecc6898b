// Package site implements the per-site local Hilbert space catalog: local
// dimension, operator tables, and precomputed eigenbases for the two site
// kinds a chain may mix, spins and truncated bosons.
package site

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kind is the scalar kind an operator table forces on the chain it sits in.
type Kind int

const (
	KindReal Kind = iota
	KindComplex
)

func (k Kind) Promote(o Kind) Kind {
	if k == KindComplex || o == KindComplex {
		return KindComplex
	}
	return KindReal
}

// Species distinguishes the two supported local Hilbert space families.
type Species int

const (
	SpeciesSpin Species = iota
	SpeciesBoson
)

// Site is a single local Hilbert space: its operator table and, for the
// axes that admit one, a precomputed eigendecomposition.
type Site struct {
	Species Species
	// S is the spin quantum number for SpeciesSpin sites (dim = 2S+1).
	S float64
	// NMax is the truncated Fock cutoff for SpeciesBoson sites (dim = NMax+1).
	NMax int

	dim  int
	kind Kind
	ops  map[string]*mat.CDense
	eig  map[string]eigenbasis
}

type eigenbasis struct {
	values  []float64
	vectors *mat.CDense
}

// LocalDim returns d, the local Hilbert space dimension.
func (s *Site) LocalDim() int { return s.dim }

// ScalarKind reports whether any operator on this site is intrinsically
// complex (spin Y, boson ladder operators are real by convention here).
func (s *Site) ScalarKind() Kind { return s.kind }

// Operator returns the d x d matrix for the named operator symbol.
func (s *Site) Operator(symbol string) (*mat.CDense, error) {
	op, ok := s.ops[symbol]
	if !ok {
		return nil, errors.Errorf("CONFIG_INVALID: site has no operator %q", symbol)
	}
	return op, nil
}

// Eigenbasis returns the ascending eigenvalues and matching eigenvectors
// (as columns) of the named axis operator (one of "X", "Y", "Z" for spins,
// "n" for bosons).
func (s *Site) Eigenbasis(axis string) ([]float64, *mat.CDense, error) {
	e, ok := s.eig[axis]
	if !ok {
		return nil, nil, errors.Errorf("CONFIG_INVALID: site has no eigenbasis for axis %q", axis)
	}
	return e.values, e.vectors, nil
}

// NewSpin constructs a spin-S site. S must be a positive half-integer.
func NewSpin(s float64) (*Site, error) {
	if s <= 0 || math.Mod(s*2, 1) != 0 {
		return nil, errors.Errorf("CONFIG_INVALID: spin quantum number %v is not a positive half-integer", s)
	}
	dim := int(math.Round(2*s)) + 1
	st := &Site{Species: SpeciesSpin, S: s, dim: dim, kind: KindComplex, ops: make(map[string]*mat.CDense), eig: make(map[string]eigenbasis)}
	st.buildSpinOps()
	st.buildSpinEigenbases()
	return st, nil
}

// NewBoson constructs a truncated boson site with Fock cutoff nMax
// (dim = nMax+1, occupations 0..nMax).
func NewBoson(nMax int) (*Site, error) {
	if nMax <= 0 {
		return nil, errors.Errorf("CONFIG_INVALID: boson cutoff n_max=%d must be positive", nMax)
	}
	dim := nMax + 1
	st := &Site{Species: SpeciesBoson, NMax: nMax, dim: dim, kind: KindReal, ops: make(map[string]*mat.CDense), eig: make(map[string]eigenbasis)}
	st.buildBosonOps()
	st.buildBosonEigenbases()
	return st, nil
}

func newComplexOp(dim int) *mat.CDense {
	return mat.NewCDense(dim, dim, nil)
}

// cdenseAdd, cdenseSub, and cdenseScale implement the elementwise ops
// gonum's mat.CDense does not expose, via At/Set.
func cdenseAdd(dst, a, b *mat.CDense) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, a.At(i, j)+b.At(i, j))
		}
	}
}

func cdenseSub(dst, a, b *mat.CDense) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, a.At(i, j)-b.At(i, j))
		}
	}
}

func cdenseScale(dst *mat.CDense, s complex128, a *mat.CDense) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, s*a.At(i, j))
		}
	}
}

func (s *Site) buildSpinOps() {
	dim := s.dim
	sVal := s.S

	sz := newComplexOp(dim)
	splus := newComplexOp(dim)
	sminus := newComplexOp(dim)
	identity := newComplexOp(dim)
	for i := 0; i < dim; i++ {
		identity.Set(i, i, complex(1, 0))
	}
	// Basis ordered m = S, S-1, ..., -S at row/col index i = 0..dim-1.
	for i := 0; i < dim; i++ {
		m := sVal - float64(i)
		sz.Set(i, i, complex(m, 0))
	}
	for i := 0; i < dim-1; i++ {
		mUpper := sVal - float64(i) // bra m
		mLower := mUpper - 1        // ket m-1, at row i+1
		coeff := math.Sqrt(sVal*(sVal+1) - mLower*(mLower+1))
		// S+ |s,m-1> = coeff |s,m>, i.e. S+[i, i+1] = coeff.
		splus.Set(i, i+1, complex(coeff, 0))
		sminus.Set(i+1, i, complex(coeff, 0))
	}

	sx := newComplexOp(dim)
	sy := newComplexOp(dim)
	cdenseAdd(sx, splus, sminus)
	cdenseScale(sx, complex(0.5, 0), sx)
	syTmp := newComplexOp(dim)
	cdenseSub(syTmp, splus, sminus)
	cdenseScale(sy, complex(0, -0.5), syTmp)

	s.ops["I"] = identity
	s.ops["X"] = sx
	s.ops["Y"] = sy
	s.ops["Z"] = sz
	s.ops["S+"] = splus
	s.ops["S-"] = sminus
}

func (s *Site) buildSpinEigenbases() {
	for _, axis := range []string{"X", "Y", "Z"} {
		op := s.ops[axis]
		vals, vecs := hermitianEigenbasis(op)
		s.eig[axis] = eigenbasis{values: vals, vectors: vecs}
	}
}

func (s *Site) buildBosonOps() {
	dim := s.dim

	identity := newComplexOp(dim)
	a := newComplexOp(dim)
	adag := newComplexOp(dim)
	n := newComplexOp(dim)
	for i := 0; i < dim; i++ {
		identity.Set(i, i, complex(1, 0))
		n.Set(i, i, complex(float64(i), 0))
	}
	// Basis ordered by occupation number 0..NMax at index i.
	for i := 0; i < dim-1; i++ {
		coeff := math.Sqrt(float64(i + 1))
		// a |i+1> = sqrt(i+1) |i>, i.e. a[i, i+1] = coeff.
		a.Set(i, i+1, complex(coeff, 0))
		adag.Set(i+1, i, complex(coeff, 0))
	}

	s.ops["I"] = identity
	s.ops["a"] = a
	s.ops["a+"] = adag
	s.ops["n"] = n
}

func (s *Site) buildBosonEigenbases() {
	// The occupation-number basis is already the eigenbasis of n; the
	// precomputed eigenvectors are the identity columns.
	dim := s.dim
	values := make([]float64, dim)
	vecs := newComplexOp(dim)
	for i := 0; i < dim; i++ {
		values[i] = float64(i)
		vecs.Set(i, i, complex(1, 0))
	}
	s.eig["n"] = eigenbasis{values: values, vectors: vecs}
}

// hermitianEigenbasis diagonalizes a small Hermitian matrix via the standard
// real embedding M = [[Re(H), -Im(H)], [Im(H), Re(H))]], whose real
// symmetric spectrum is H's spectrum with every eigenvalue doubled. Walking
// the ascending real spectrum two entries at a time and reading off one
// eigenvector of each pair recovers H's eigenpairs in ascending order with a
// deterministic (first-encountered-index) tie-break.
func hermitianEigenbasis(h *mat.CDense) ([]float64, *mat.CDense) {
	n, _ := h.Dims()
	embed := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := h.At(i, j)
			embed.SetSym(i, j, real(v))
			embed.SetSym(n+i, n+j, real(v))
			embed.SetSym(i, n+j, -imag(v))
			embed.SetSym(n+i, j, imag(v))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embed, true); !ok {
		panic("site: hermitian eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	values := make([]float64, n)
	vectors := newComplexOp(n)
	for k := 0; k < n; k++ {
		idx := 2 * k
		values[k] = vals[idx]
		norm := 0.0
		for i := 0; i < n; i++ {
			re, im := vecs.At(i, idx), vecs.At(n+i, idx)
			norm += re*re + im*im
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		for i := 0; i < n; i++ {
			re, im := vecs.At(i, idx), vecs.At(n+i, idx)
			vectors.Set(i, k, complex(re/norm, im/norm))
		}
	}
	return values, vectors
}
