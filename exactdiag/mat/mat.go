package mat

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

var (
	PauliX = [][]complex64{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex64{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex64{
		{1, 0},
		{0, -1},
	}
)

type vRowCol struct {
	v   complex64
	row int
	col int
}

type COO struct {
	rows int
	cols int
	Data []vRowCol

	m map[[2]int]complex64
}

func M(dense [][]complex64) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]vRowCol, 0), m: make(map[[2]int]complex64)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, vRowCol{v: v, row: i, col: j})
		}
	}
	return m
}

func COOZeros(rows, cols int) *COO {
	m := M([][]complex64{{0}})
	m.Zeros(rows, cols)
	return m
}

func COOIdentity(rows int) *COO {
	m := M([][]complex64{{0}})
	m.Zeros(rows, rows)
	for i := 0; i < rows; i++ {
		m.Data = append(m.Data, vRowCol{v: 1, row: i, col: i})
	}
	return m
}

func (m *COO) Rows() int { return m.rows }
func (m *COO) Cols() int { return m.cols }

func (m *COO) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

func (m *COO) Scalar(v complex64) {
	m.rows, m.cols = 1, 1
	m.Data = m.Data[:0]
	m.Data = append(m.Data, vRowCol{v: v, row: 0, col: 0})
}

func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows {
		return false
	}
	if a.cols != b.cols {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i, av := range a.Data {
		bv := b.Data[i]
		if av != bv {
			return false
		}
	}
	return true
}

// Add accumulates c*b into a in place, broadcasting b against a's shape the
// way qising.go's Hamiltonian assembly loop does: b may be a scalar, a
// column vector matching a's row count, or a matrix matching a's shape
// exactly. A scalar or column-vector b is broadcast onto a's stored
// (nonzero) entries only.
func (a *COO) Add(c complex64, b *COO) {
	clear(b.m)
	for _, v := range b.Data {
		b.m[[2]int{v.row, v.col}] = v.v
	}

	full := b.rows == a.rows && b.cols == a.cols
	for i, av := range a.Data {
		var byx [2]int
		switch {
		case b.rows == 1 && b.cols == 1:
		case b.rows == a.rows && b.cols == 1:
			byx[0] = av.row
		case b.rows == a.rows && b.cols == a.cols:
			byx[0], byx[1] = av.row, av.col
		default:
			panic("wrong dimensions")
		}
		bv := b.m[byx]
		if full {
			delete(b.m, byx)
		}

		a.Data[i].v = av.v + c*bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	if full {
		for yx, bv := range b.m {
			a.Data = append(a.Data, vRowCol{v: c * bv, row: yx[0], col: yx[1]})
		}
	}
	slices.SortFunc(a.Data, rowMajor)
	clear(b.m)
}

func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].v = 0
		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			a.Data = append(a.Data, vRowCol{v: av.v * bv.v, row: ky, col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

type ValVec struct {
	Val complex128
	Vec []complex128
}

// Eigen diagonalizes m, which must be Hermitian, via the real-symmetric
// embedding [[Re(H), -Im(H)], [Im(H), Re(H)]] already used in the site
// package's hermitianEigenbasis: gonum's mat.Eigen only handles the general
// (possibly non-symmetric) real case and panics given a genuinely complex
// input, but every physical Hamiltonian this package builds is Hermitian.
func (m *COO) Eigen() []ValVec {
	n := m.rows
	embed := mat.NewSymDense(2*n, nil)
	for _, v := range m.Data {
		i, j := v.row, v.col
		if j < i {
			continue // Hermitian: only the upper triangle needs setting.
		}
		re, im := float64(real(v.v)), float64(imag(v.v))
		embed.SetSym(i, j, re)
		embed.SetSym(n+i, n+j, re)
		embed.SetSym(i, n+j, -im)
		embed.SetSym(n+i, j, im)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embed, true); !ok {
		panic("exactdiag: hermitian eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	vvs := make([]ValVec, 0, n)
	for k := 0; k < n; k++ {
		idx := 2 * k
		vec := make([]complex128, n)
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
			vec[i] = complex(re/norm, im/norm)
		}
		vvs = append(vvs, ValVec{Val: complex(vals[idx], 0), Vec: vec})
	}
	slices.SortFunc(vvs, func(a, b ValVec) int { return cmp.Compare(real(a.Val), real(b.Val)) })
	return vvs
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}

