// Package effham builds the effective Hamiltonian linear operator that a
// sweep step diagonalizes or exponentiates, at one or two sites (there is no
// zero-site bond operator), generalizing mps/mps.go's getH from "always
// materialize the dense matrix" to an interface that exposes a MatVec
// alongside a dense fallback. The one-site MatVec is matrix-free; the
// two-site MatVec multiplies by the memoized dense matrix.
package effham

import (
	"github.com/pkg/errors"

	"github.com/fumin/tensor"

	"github.com/fumin/mpscore/mpo"
)

// Operator is a Hermitian linear operator acting on a local tensor of a
// fixed shape: the effective Hamiltonian at the current bond, restricted by
// the two environment tensors flanking it.
type Operator interface {
	// Dim is the flattened dimension of the local vector this operator acts on.
	Dim() int
	// MatVec applies the operator to a flattened local tensor without
	// materializing the full dense matrix.
	MatVec(x *tensor.Dense) *tensor.Dense
	// Dense materializes the full dim x dim matrix, for small effective
	// spaces where a direct eigensolver is cheaper than Lanczos.
	Dense() *tensor.Dense
}

// oneSite is <left| W | right> contracted around a single physical index,
// per Schollwock equation 210.
type oneSite struct {
	left, right, w *tensor.Dense
	dLeft, dUp, dRight int
}

// NewOneSite builds the effective Hamiltonian for the single site with MPO
// tensor w, flanked by left and right environment tensors (shapes {top,
// mid, bot} each).
func NewOneSite(left, w, right *tensor.Dense) (Operator, error) {
	ls, ws, rs := left.Shape(), w.Shape(), right.Shape()
	if ls[0] != ls[2] || rs[0] != rs[2] {
		return nil, errors.Errorf("DIMENSION_MISMATCH: environment tensor is not square: left=%v right=%v", ls, rs)
	}
	return &oneSite{left: left, right: right, w: w, dLeft: ls[0], dUp: ws[mpo.UpAxis], dRight: rs[0]}, nil
}

func (o *oneSite) Dim() int { return o.dLeft * o.dUp * o.dRight }

// MatVec applies H to x by contracting m directly into the environments and
// w (Schollwock equation 210's operator, applied without ever forming its
// dense matrix): environments carry axes {bra, mpo, ket}, m carries {left
// ket, up, right ket}.
func (o *oneSite) MatVec(x *tensor.Dense) *tensor.Dense {
	m := x.Reshape(o.dLeft, o.dUp, o.dRight)

	// mr: {leftKet, up, rightBra, rightMpo}.
	mr := tensor.Contract(tensor.Zeros(1), m, o.right, [][2]int{{2, 2}})
	// wmr: {mpoLeft, mpoUp, leftKet, rightBra}.
	wmr := tensor.Contract(tensor.Zeros(1), o.w, mr, [][2]int{{mpo.DownAxis, 1}, {mpo.RightAxis, 3}})
	// result: {leftBra, mpoUp, rightBra}.
	result := tensor.Contract(tensor.Zeros(1), o.left, wmr, [][2]int{{1, 0}, {2, 2}})

	return result.Reshape(o.dLeft * o.dUp * o.dRight)
}

func (o *oneSite) Dense() *tensor.Dense {
	h := o.dense()
	return h
}

func (o *oneSite) dense() *tensor.Dense {
	wRight := tensor.Contract(tensor.Zeros(1), o.w, o.right, [][2]int{{mpo.RightAxis, 1}})
	lwr := tensor.Contract(tensor.Zeros(1), o.left, wRight, [][2]int{{1, 0}})
	h := lwr.Transpose(0, 2, 4, 1, 3, 5)
	return h.Reshape(o.dLeft*o.dUp*o.dRight, o.dLeft*o.dUp*o.dRight)
}

// twoSite is the two-site generalization of oneSite, contracting both MPO
// tensors at the active bond.
type twoSite struct {
	left, w1, w2, right *tensor.Dense
	dLeft, d1, d2, dRight int

	dense *tensor.Dense // memoized by Dense, since MatVec calls it every Lanczos/Krylov iteration.
}

// NewTwoSite builds the effective Hamiltonian for the bond spanning two
// adjacent sites with MPO tensors w1, w2.
func NewTwoSite(left, w1, w2, right *tensor.Dense) (Operator, error) {
	ls, rs := left.Shape(), right.Shape()
	if ls[0] != ls[2] || rs[0] != rs[2] {
		return nil, errors.Errorf("DIMENSION_MISMATCH: environment tensor is not square: left=%v right=%v", ls, rs)
	}
	return &twoSite{
		left: left, w1: w1, w2: w2, right: right,
		dLeft: ls[0], d1: w1.Shape()[mpo.UpAxis], d2: w2.Shape()[mpo.UpAxis], dRight: rs[0],
	}, nil
}

func (o *twoSite) Dim() int { return o.dLeft * o.d1 * o.d2 * o.dRight }

// MatVec falls back to the dense path: unlike oneSite, contracting w1 and w2
// separately into x still leaves a bond-dimension-squared intermediate, so
// there is no matrix-free contraction order cheaper than building Dense once
// and reusing it for every Lanczos/Krylov iteration at this bond.
func (o *twoSite) MatVec(x *tensor.Dense) *tensor.Dense {
	return matVecDense(o.Dense(), x, o.Dim())
}

func (o *twoSite) Dense() *tensor.Dense {
	if o.dense != nil {
		return o.dense
	}
	// Combine w1, w2 into a single effective two-site MPO tensor by
	// contracting their shared bond, then reuse oneSite's dense path.
	w12 := tensor.Contract(tensor.Zeros(1), o.w1, o.w2, [][2]int{{mpo.RightAxis, mpo.LeftAxis}})
	// w12 axes after contraction: w1's leftover {leftBond, up1, down1} then
	// w2's leftover {rightBond, up2, down2}; reorder to
	// {leftBond, rightBond, up1, up2, down1, down2}.
	w12 = w12.Transpose(0, 3, 1, 4, 2, 5)
	shape := w12.Shape()
	w12 = w12.Reshape(shape[0], shape[1], shape[2]*shape[3], shape[4]*shape[5])

	os := &oneSite{left: o.left, right: o.right, w: w12, dLeft: o.dLeft, dUp: o.d1 * o.d2, dRight: o.dRight}
	o.dense = os.dense()
	return o.dense
}

func matVecDense(h, x *tensor.Dense, dim int) *tensor.Dense {
	flat := x.Reshape(dim, 1)
	y := tensor.Contract(tensor.Zeros(1), h, flat, [][2]int{{1, 0}})
	return y.Reshape(dim)
}
