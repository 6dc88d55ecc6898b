package mps

import (
	"math/cmplx"
	"testing"

	"github.com/fumin/mpscore/channel"
	"github.com/fumin/mpscore/fsm"
	"github.com/fumin/mpscore/mpo"
	"github.com/fumin/mpscore/site"
)

func spinChain(t *testing.T, n int) *site.Chain {
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
	return &site.Chain{Sites: sites}
}

func TestNewProductStateIsNormalized(t *testing.T) {
	chain := spinChain(t, 4)
	s, err := NewProductState(chain, []int{0, 1, 0, 1})
	if err != nil {
		t.Fatalf("NewProductState: %v", err)
	}
	ip := InnerProduct(s, s)
	if abs64(ip-1) > 1e-5 {
		t.Fatalf("<s|s> = %v, want 1", ip)
	}
}

func TestNewProductStateRejectsBadOccupation(t *testing.T) {
	chain := spinChain(t, 2)
	if _, err := NewProductState(chain, []int{0, 5}); err == nil {
		t.Fatalf("expected DIMENSION_MISMATCH for out-of-range occupation")
	}
	if _, err := NewProductState(chain, []int{0}); err == nil {
		t.Fatalf("expected DIMENSION_MISMATCH for wrong occupation length")
	}
}

func TestCanonicalizePreservesNorm(t *testing.T) {
	chain := spinChain(t, 5)
	s := RandomMPS(chain, 4)
	before := InnerProduct(s, s)

	Canonicalize(s, 2)

	after := InnerProduct(s, s)
	if abs64(before-after) > 1e-3*abs64(before) {
		t.Fatalf("norm changed under canonicalization: before %v after %v", before, after)
	}
	if s.Center != 2 {
		t.Fatalf("Center = %d, want 2", s.Center)
	}
}

func TestExpectationMatchesFieldWeight(t *testing.T) {
	chain := spinChain(t, 2)
	g, err := fsm.Build(channel.List{channel.Field{Species: "spin", Op: "Z", W: 1}})
	if err != nil {
		t.Fatalf("fsm.Build: %v", err)
	}
	w, err := mpo.Build(g, chain)
	if err != nil {
		t.Fatalf("mpo.Build: %v", err)
	}

	// |up, up> has total Z = Sz eigenvalue +1 (0.5+0.5).
	s, err := NewProductState(chain, []int{0, 0})
	if err != nil {
		t.Fatalf("NewProductState: %v", err)
	}
	e := Expectation(w, s)
	if abs64(complex128(e)-1) > 1e-4 {
		t.Fatalf("<Z> = %v, want 1", e)
	}
}

func abs64(z complex128) float64 {
	return cmplx.Abs(z)
}
