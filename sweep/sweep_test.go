package sweep

import (
	"testing"

	"github.com/fumin/mpscore/channel"
	"github.com/fumin/mpscore/fsm"
	"github.com/fumin/mpscore/mpo"
	"github.com/fumin/mpscore/mps"
	"github.com/fumin/mpscore/site"
	"github.com/fumin/mpscore/solver"
)

func fieldChain(t *testing.T, n int) (mpo.MPO, *site.Chain) {
	t.Helper()
	cat := site.NewCatalog()
	half, err := cat.Spin(0.5)
	if err != nil {
		t.Fatalf("Spin(0.5): %v", err)
	}
	sites := make([]*site.Site, n)
	for i := range sites {
		sites[i] = half
	}
	chain := &site.Chain{Sites: sites}

	g, err := fsm.Build(channel.List{channel.Field{Species: "spin", Op: "Z", W: 1}})
	if err != nil {
		t.Fatalf("fsm.Build: %v", err)
	}
	w, err := mpo.Build(g, chain)
	if err != nil {
		t.Fatalf("mpo.Build: %v", err)
	}
	return w, chain
}

func TestGroundStateFindsFieldMinimum(t *testing.T) {
	n := 4
	w, chain := fieldChain(t, n)
	s := mps.RandomMPS(chain, 4)

	opts := DMRGOptions{
		Options: Options{
			Truncate: mps.TruncateOptions{MaxRank: 4},
			Lanczos:  solver.Options{MaxIter: 12, Tol: 1e-10},
		},
		MaxSweeps: 6,
		Tol:       1e-8,
	}
	res, err := GroundState(w, s, opts, nil)
	if err != nil {
		t.Fatalf("GroundState: %v", err)
	}

	want := -0.5 * float64(n)
	if diff := res.Energy - want; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("Energy = %v, want %v", res.Energy, want)
	}
}

func TestStepPreservesNorm(t *testing.T) {
	n := 4
	w, chain := fieldChain(t, n)
	s := mps.RandomMPS(chain, 4)
	mps.Canonicalize(s, 0)
	if err := mps.Normalize(s); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	before := mps.InnerProduct(s, s)

	opts := TDVPOptions{
		Options: Options{
			Truncate: mps.TruncateOptions{MaxRank: 4},
			Lanczos:  solver.Options{MaxIter: 12, Tol: 1e-10},
		},
		Dt: complex(0, -0.05),
	}
	if err := Step(w, s, opts, nil); err != nil {
		t.Fatalf("Step: %v", err)
	}

	after := mps.InnerProduct(s, s)
	diff := after - before
	if realAbs(complex128(diff)) > 1e-2 {
		t.Fatalf("norm not preserved: before %v after %v", before, after)
	}
}

func realAbs(z complex128) float64 {
	r := real(z)
	if r < 0 {
		return -r
	}
	return r
}
