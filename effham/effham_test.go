package effham

import (
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/fumin/tensor"

	"github.com/fumin/mpscore/channel"
	"github.com/fumin/mpscore/fsm"
	"github.com/fumin/mpscore/mpo"
	"github.com/fumin/mpscore/mps"
	"github.com/fumin/mpscore/site"
)

func buildFixture(t *testing.T) (mpo.MPO, *mps.State) {
	t.Helper()
	cat := site.NewCatalog()
	half, err := cat.Spin(0.5)
	if err != nil {
		t.Fatalf("Spin(0.5): %v", err)
	}
	chain := &site.Chain{Sites: []*site.Site{half, half, half, half}}

	g, err := fsm.Build(channel.List{
		channel.Field{Species: "spin", Op: "Z", W: 0.5},
		channel.FiniteRangeCoupling{OpA: "X", OpB: "X", Delta: 1, W: 1},
	})
	if err != nil {
		t.Fatalf("fsm.Build: %v", err)
	}
	w, err := mpo.Build(g, chain)
	if err != nil {
		t.Fatalf("mpo.Build: %v", err)
	}

	s := mps.RandomMPS(chain, 4)
	mps.Canonicalize(s, 2)
	return w, s
}

func randomVec(dim int) *tensor.Dense {
	t := tensor.Zeros(dim)
	for idx := range t.All() {
		t.SetAt(idx, complex(rand.Float32()*2-1, rand.Float32()*2-1))
	}
	return t
}

func TestOneSiteMatVecMatchesDense(t *testing.T) {
	w, s := buildFixture(t)
	env := mps.NewEnvironment(s.Len())
	env.BuildRight(w, s)
	env.BuildLeft(w, s)

	const l = 1
	op, err := NewOneSite(env.L[l], w[l], env.R[l+1])
	if err != nil {
		t.Fatalf("NewOneSite: %v", err)
	}

	x := randomVec(op.Dim())
	got := op.MatVec(x)

	h := op.Dense()
	flat := x.Reshape(op.Dim(), 1)
	want := tensor.Contract(tensor.Zeros(1), h, flat, [][2]int{{1, 0}}).Reshape(op.Dim())

	for idx, gv := range got.All() {
		wv := want.At(idx...)
		if cmplx.Abs(complex128(gv-wv)) > 1e-3 {
			t.Fatalf("MatVec/Dense mismatch at %v: got %v want %v", idx, gv, wv)
		}
	}
}

func TestTwoSiteDimMatchesShapes(t *testing.T) {
	w, s := buildFixture(t)
	env := mps.NewEnvironment(s.Len())
	env.BuildRight(w, s)
	env.BuildLeft(w, s)

	const l = 1
	op, err := NewTwoSite(env.L[l], w[l], w[l+1], env.R[l+2])
	if err != nil {
		t.Fatalf("NewTwoSite: %v", err)
	}

	wantDim := env.L[l].Shape()[0] * w[l].Shape()[mpo.UpAxis] * w[l+1].Shape()[mpo.UpAxis] * env.R[l+2].Shape()[0]
	if op.Dim() != wantDim {
		t.Fatalf("Dim() = %d, want %d", op.Dim(), wantDim)
	}

	h := op.Dense()
	if got := h.Shape(); got[0] != op.Dim() || got[1] != op.Dim() {
		t.Fatalf("Dense() shape = %v, want square %d", got, op.Dim())
	}
}
