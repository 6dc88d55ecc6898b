// Package mps implements matrix product state representation, canonical
// form, and environment-cache contraction, generalized from a single-site
// homogeneous-chain ground state search into a shared substrate for
// two-site DMRG and TDVP over heterogeneous site.Chain layouts.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product
//     states, Ulrich Schollwock
package mps

import (
	"fmt"
	"math/cmplx"
	"math/rand/v2"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/mpscore/mpo"
	"github.com/fumin/mpscore/site"
)

// Site tensor axis convention: [left, up, right] = [chi_left, d, chi_right].
const (
	LeftAxis  = 0
	UpAxis    = 1
	RightAxis = 2

	// Machine precision for complex64 arithmetic.
	Epsilon = 0x1p-23
)

// State is a matrix product state over a site.Chain: one rank-3 tensor per
// position, plus the position of the current canonical center (-1 if the
// state's canonical form is unknown, e.g. immediately after construction
// from raw amplitudes).
type State struct {
	Sites  []*tensor.Dense
	Center int
}

// Len returns N, the chain length.
func (s *State) Len() int { return len(s.Sites) }

// NewProductState builds a bond-dimension-one product state |occ[0]> ...
// |occ[N-1]> over chain, each occ[i] an occupation-basis index into the
// site's local dimension.
func NewProductState(chain *site.Chain, occ []int) (*State, error) {
	n := chain.Len()
	if len(occ) != n {
		return nil, errors.Errorf("DIMENSION_MISMATCH: %d occupations for a %d-site chain", len(occ), n)
	}
	sites := make([]*tensor.Dense, n)
	for i := 0; i < n; i++ {
		d := chain.At(i).LocalDim()
		if occ[i] < 0 || occ[i] >= d {
			return nil, errors.Errorf("DIMENSION_MISMATCH: occupation %d out of range for site %d of dimension %d", occ[i], i, d)
		}
		t := tensor.Zeros(1, d, 1)
		t.SetAt([]int{0, occ[i], 0}, 1)
		sites[i] = t
	}
	return &State{Sites: sites, Center: 0}, nil
}

// RandomMPS builds a random matrix product state over chain with maximum
// bond dimension maxD, generalizing RandMPS to heterogeneous per-site local
// dimensions.
func RandomMPS(chain *site.Chain, maxD int) *State {
	n := chain.Len()
	sites := make([]*tensor.Dense, n)

	physD := chain.At(0).LocalDim()
	leftD := physD
	sites[0] = randTensor(1, physD, min(physD, maxD))

	for i := 1; i <= n-2; i++ {
		physD := chain.At(i).LocalDim()
		var rightD int
		switch {
		case i < n/2:
			rightD = leftD * physD
		case i > n/2:
			rightD = leftD / physD
			if rightD < 1 {
				rightD = 1
			}
		case n%2 == 0:
			rightD = leftD / physD
			if rightD < 1 {
				rightD = 1
			}
		default:
			rightD = leftD
		}
		leftD = rightD

		si1 := sites[i-1].Shape()
		sites[i] = randTensor(si1[RightAxis], physD, min(rightD, maxD))
	}

	physD = chain.At(n - 1).LocalDim()
	si1 := sites[n-2].Shape()
	sites[n-1] = randTensor(si1[RightAxis], physD, 1)

	return &State{Sites: sites, Center: -1}
}

// InnerProduct computes <x|y>, per Schollwock section 4.2.1.
func InnerProduct(x, y *State) complex64 {
	if x.Len() != y.Len() {
		panic(fmt.Sprintf("%d %d", x.Len(), y.Len()))
	}
	f := ones(tensor.Zeros(1), 1, 1)
	const fTopAxis, fBottomAxis = 0, 1
	for i, xi := range x.Sites {
		yi := y.Sites[i]
		fyi := tensor.Contract(tensor.Zeros(1), f, yi, [][2]int{{fBottomAxis, LeftAxis}})
		f = tensor.Contract(tensor.Zeros(1), xi.Conj(), fyi, [][2]int{{LeftAxis, fTopAxis}, {UpAxis, UpAxis}})
	}
	if !slices.Equal(f.Shape(), []int{1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0)
}

// Normalize rescales state in place so that <state|state> = 1. Canonical
// form is preserved only when state already has a canonical center: the
// rescale factor is applied to the center tensor, or to site 0 if no center
// is known.
func Normalize(s *State) error {
	norm2 := InnerProduct(s, s)
	norm := cmplx.Sqrt(complex128(norm2))
	if cmplx.Abs(norm) < Epsilon {
		return errors.Errorf("NUMERICAL_BREAKDOWN: state norm %v is numerically zero", norm)
	}
	idx := s.Center
	if idx < 0 {
		idx = 0
	}
	scale := complex64(1 / norm)
	scaleInPlace(s.Sites[idx], scale)
	return nil
}

func scaleInPlace(t *tensor.Dense, scale complex64) {
	for idx, v := range t.All() {
		t.SetAt(idx, v*scale)
	}
}

// Environment caches the left and right partial contractions of an MPO
// sandwiched between a state and itself, E[0..N] on each side, so that
// sweeping algorithms rebuild only the single bond that changed.
type Environment struct {
	L []*tensor.Dense // L[i] is the contraction of sites 0..i-1.
	R []*tensor.Dense // R[i] is the contraction of sites i..N-1.
}

// NewEnvironment allocates an environment cache for a chain of length n,
// with trivial boundary environments already filled in.
func NewEnvironment(n int) *Environment {
	e := &Environment{L: make([]*tensor.Dense, n+1), R: make([]*tensor.Dense, n+1)}
	e.L[0] = ones(tensor.Zeros(1), 1, 1, 1)
	e.R[n] = ones(tensor.Zeros(1), 1, 1, 1)
	return e
}

// BuildLeft fills L[1..n] from L[0], per Schollwock equation 192.
func (e *Environment) BuildLeft(w mpo.MPO, s *State) {
	for i := 0; i < s.Len(); i++ {
		e.L[i+1] = lExpression(tensor.Zeros(1), e.L[i], w[i], s.Sites[i])
	}
}

// BuildRight fills R[n-1..0] from R[n], per Schollwock equation 193.
func (e *Environment) BuildRight(w mpo.MPO, s *State) {
	for i := s.Len() - 1; i >= 0; i-- {
		e.R[i] = rExpression(tensor.Zeros(1), e.R[i+1], w[i], s.Sites[i])
	}
}

// lExpression contracts one more site into a left environment: fi1 has
// shape {fTop, fMid, fBot}; the result again has that shape, advanced past
// site m under MPO tensor w.
func lExpression(fi, fi1, w, m *tensor.Dense) *tensor.Dense {
	fm := tensor.Contract(tensor.Zeros(1), fi1, m, [][2]int{{2, LeftAxis}})
	wfm := tensor.Contract(tensor.Zeros(1), w, fm, [][2]int{{mpo.DownAxis, 2}, {mpo.LeftAxis, 1}})
	return tensor.Contract(fi, m.Conj(), wfm, [][2]int{{LeftAxis, 2}, {UpAxis, 1}})
}

// rExpression is lExpression's mirror image, contracting one more site into
// a right environment.
func rExpression(fi, fi1, w, m *tensor.Dense) *tensor.Dense {
	fm := tensor.Contract(tensor.Zeros(1), fi1, m, [][2]int{{2, RightAxis}})
	wfm := tensor.Contract(tensor.Zeros(1), w, fm, [][2]int{{mpo.DownAxis, 3}, {mpo.RightAxis, 1}})
	return tensor.Contract(fi, m.Conj(), wfm, [][2]int{{RightAxis, 2}, {UpAxis, 1}})
}

// ExtendLeft updates L[i+1] from L[i] using site i, for incremental sweeps
// that rebuild only the bond that changed instead of the whole chain.
func (e *Environment) ExtendLeft(i int, w mpo.MPO, s *State) {
	e.L[i+1] = lExpression(tensor.Zeros(1), e.L[i], w[i], s.Sites[i])
}

// ExtendRight updates R[i] from R[i+1] using site i.
func (e *Environment) ExtendRight(i int, w mpo.MPO, s *State) {
	e.R[i] = rExpression(tensor.Zeros(1), e.R[i+1], w[i], s.Sites[i])
}

// Expectation returns <state|W|state> for a fully-built MPO w, by
// contracting a fresh left environment across the whole chain.
func Expectation(w mpo.MPO, s *State) complex64 {
	e := NewEnvironment(s.Len())
	e.BuildLeft(w, s)
	f := e.L[s.Len()]
	return f.At(0, 0, 0)
}

// CanonicalizeLeft puts sites [0, center) into left-canonical form via QR
// sweeps, absorbing the remainder factor rightward, per Schollwock section
// 4.4.1.
func CanonicalizeLeft(s *State, center int) {
	for i := 0; i < center; i++ {
		leftNormalize(s.Sites, i)
	}
}

// CanonicalizeRight puts sites (center, N) into right-canonical form via LQ
// sweeps, absorbing the remainder factor leftward, per Schollwock section
// 4.4.2.
func CanonicalizeRight(s *State, center int) {
	for i := s.Len() - 1; i > center; i-- {
		rightNormalize(s.Sites, i)
	}
}

// Canonicalize brings state into mixed canonical form about center: sites
// left of center are left-orthogonal, sites right of center are
// right-orthogonal, and center itself carries the state's norm.
func Canonicalize(s *State, center int) {
	CanonicalizeLeft(s, center)
	CanonicalizeRight(s, center)
	s.Center = center
}

func leftNormalize(ms []*tensor.Dense, i int) {
	shape := ms[i].Shape()
	dLeft, dUp := shape[LeftAxis], shape[UpAxis]

	mi := ms[i].Reshape(dLeft*dUp, shape[RightAxis])
	q := tensor.Zeros(1)
	r := tensor.QR(q, mi, [2]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1)})

	axes := [][2]int{{1, LeftAxis}}
	ms[i+1] = resetCopy(tensor.Zeros(1), tensor.Contract(tensor.Zeros(1), r, ms[i+1], axes))
	ms[i] = resetCopy(tensor.Zeros(1), q).Reshape(dLeft, dUp, -1)
}

func rightNormalize(ms []*tensor.Dense, i int) {
	shape := ms[i].Shape()
	dUp, dRight := shape[UpAxis], shape[RightAxis]

	mi := ms[i].Reshape(shape[LeftAxis], dUp*dRight)
	q := tensor.Zeros(1)
	l := lq(q, mi)

	axes := [][2]int{{RightAxis, 0}}
	ms[i-1] = resetCopy(tensor.Zeros(1), tensor.Contract(tensor.Zeros(1), ms[i-1], l, axes))
	ms[i] = resetCopy(tensor.Zeros(1), q.H()).Reshape(-1, dUp, dRight)
}

func lq(q, a *tensor.Dense) *tensor.Dense {
	r := tensor.QR(q, a.H(), [2]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1)})
	return r.H()
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}

func ones(t *tensor.Dense, shape ...int) *tensor.Dense {
	t.Reset(shape...)
	for idx := range t.All() {
		t.SetAt(idx, 1)
	}
	return t
}

func randTensor(shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	for idx := range t.All() {
		v := complex(rand.Float32()*2-1, rand.Float32()*2-1)
		t.SetAt(idx, v)
	}
	return t
}
