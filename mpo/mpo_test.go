package mpo

import (
	"testing"

	"github.com/fumin/mpscore/channel"
	"github.com/fumin/mpscore/fsm"
	"github.com/fumin/mpscore/site"
)

func buildChain(t *testing.T, n int) *site.Chain {
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

func TestBuildFieldMPOBoundaries(t *testing.T) {
	chain := buildChain(t, 3)
	g, err := fsm.Build(channel.List{channel.Field{Species: "spin", Op: "Z", W: 0.5}})
	if err != nil {
		t.Fatalf("fsm.Build: %v", err)
	}
	if g.Chi != 2 {
		t.Fatalf("chi = %d, want 2", g.Chi)
	}

	w, err := Build(g, chain)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(w) != 3 {
		t.Fatalf("len(w) = %d, want 3", len(w))
	}

	if got := w[0].Shape(); !shapeEqual(got, []int{1, 2, 2, 2}) {
		t.Fatalf("w[0] shape = %v, want [1 2 2 2]", got)
	}
	if got := w[1].Shape(); !shapeEqual(got, []int{2, 2, 2, 2}) {
		t.Fatalf("w[1] shape = %v, want [2 2 2 2]", got)
	}
	if got := w[2].Shape(); !shapeEqual(got, []int{2, 1, 2, 2}) {
		t.Fatalf("w[2] shape = %v, want [2 1 2 2]", got)
	}

	// Left boundary column 1 (identity, to keep propagating) is I on the
	// diagonal, column 0 (the closing branch) carries 0.5*Z.
	if v := w[0].At(0, 1, 0, 0); v != 1 {
		t.Fatalf("w[0][0,1,0,0] = %v, want 1 (identity)", v)
	}
	if v := w[0].At(0, 1, 1, 1); v != 1 {
		t.Fatalf("w[0][0,1,1,1] = %v, want 1 (identity)", v)
	}
	if v := w[0].At(0, 0, 0, 0); v != 0.25 {
		t.Fatalf("w[0][0,0,0,0] = %v, want 0.25", v)
	}
	if v := w[0].At(0, 0, 1, 1); v != -0.25 {
		t.Fatalf("w[0][0,0,1,1] = %v, want -0.25", v)
	}

	// Right boundary row 0 (identity, entering already-closed) is I, row 1
	// (still-open branch) carries 0.5*Z.
	if v := w[2].At(0, 0, 0, 0); v != 1 {
		t.Fatalf("w[2][0,0,0,0] = %v, want 1 (identity)", v)
	}
	if v := w[2].At(1, 0, 0, 0); v != 0.25 {
		t.Fatalf("w[2][1,0,0,0] = %v, want 0.25", v)
	}
}

func TestBuildRejectsTooShortChain(t *testing.T) {
	chain := buildChain(t, 1)
	g, err := fsm.Build(channel.List{channel.Field{Species: "spin", Op: "Z", W: 1}})
	if err != nil {
		t.Fatalf("fsm.Build: %v", err)
	}
	if _, err := Build(g, chain); err == nil {
		t.Fatalf("expected DIMENSION_MISMATCH for a length-1 chain")
	}
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
