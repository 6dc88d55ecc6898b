package mat

import (
	"math"
	"testing"
)

func denseAt(m *COO, i, j int) complex64 {
	for _, v := range m.Data {
		if v.row == i && v.col == j {
			return v.v
		}
	}
	return 0
}

func TestKronBuildsTensorProduct(t *testing.T) {
	a := M([][]complex64{{1, 0}, {0, -1}}) // Pauli Z
	b := M([][]complex64{{0, 1}, {1, 0}})  // Pauli X
	a.Kron(b)

	want := M([][]complex64{
		{0, 1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 0, -1},
		{0, 0, -1, 0},
	})
	if !a.Equal(want) {
		t.Fatalf("Z (x) X = %v, want %v", a, want)
	}
}

func TestAddAccumulatesWeightedTerms(t *testing.T) {
	h := COOZeros(2, 2)
	z := M([][]complex64{{1, 0}, {0, -1}})
	x := M([][]complex64{{0, 1}, {1, 0}})
	h.Add(0.5, z)
	h.Add(1, x)

	want := M([][]complex64{{0.5, 1}, {1, -0.5}})
	if !h.Equal(want) {
		t.Fatalf("h = %v, want %v", h, want)
	}
}

func TestEigenDiagonalizesRealSymmetricMatrix(t *testing.T) {
	x := M([][]complex64{{0, 1}, {1, 0}}) // Pauli X, eigenvalues +-1
	vvs := x.Eigen()
	if len(vvs) != 2 {
		t.Fatalf("len(vvs) = %d, want 2", len(vvs))
	}
	if math.Abs(real(vvs[0].Val)+1) > 1e-9 {
		t.Fatalf("lowest eigenvalue = %v, want -1", vvs[0].Val)
	}
	if math.Abs(real(vvs[1].Val)-1) > 1e-9 {
		t.Fatalf("highest eigenvalue = %v, want 1", vvs[1].Val)
	}
}

func TestEigenDiagonalizesComplexHermitianMatrix(t *testing.T) {
	y := M(PauliY) // eigenvalues +-1, complex off-diagonal
	vvs := y.Eigen()
	if len(vvs) != 2 {
		t.Fatalf("len(vvs) = %d, want 2", len(vvs))
	}
	if math.Abs(real(vvs[0].Val)+1) > 1e-9 || math.Abs(imag(vvs[0].Val)) > 1e-9 {
		t.Fatalf("lowest eigenvalue = %v, want -1", vvs[0].Val)
	}
	if math.Abs(real(vvs[1].Val)-1) > 1e-9 || math.Abs(imag(vvs[1].Val)) > 1e-9 {
		t.Fatalf("highest eigenvalue = %v, want 1", vvs[1].Val)
	}
}

func TestCOOIdentityHasOnesOnDiagonal(t *testing.T) {
	id := COOIdentity(3)
	if denseAt(id, 0, 0) != 1 || denseAt(id, 1, 1) != 1 || denseAt(id, 2, 2) != 1 {
		t.Fatalf("expected 1s on the diagonal")
	}
	if denseAt(id, 0, 1) != 0 {
		t.Fatalf("expected 0 off the diagonal")
	}
}
