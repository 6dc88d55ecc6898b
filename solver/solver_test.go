package solver

import (
	"math/cmplx"
	"testing"

	"github.com/fumin/tensor"

	"github.com/fumin/mpscore/channel"
	"github.com/fumin/mpscore/effham"
	"github.com/fumin/mpscore/fsm"
	"github.com/fumin/mpscore/mpo"
	"github.com/fumin/mpscore/mps"
	"github.com/fumin/mpscore/site"
)

func twoSiteFieldOp(t *testing.T) effham.Operator {
	t.Helper()
	cat := site.NewCatalog()
	half, err := cat.Spin(0.5)
	if err != nil {
		t.Fatalf("Spin(0.5): %v", err)
	}
	chain := &site.Chain{Sites: []*site.Site{half, half}}

	g, err := fsm.Build(channel.List{channel.Field{Species: "spin", Op: "Z", W: 1}})
	if err != nil {
		t.Fatalf("fsm.Build: %v", err)
	}
	w, err := mpo.Build(g, chain)
	if err != nil {
		t.Fatalf("mpo.Build: %v", err)
	}

	s := mps.RandomMPS(chain, 2)
	mps.Canonicalize(s, 0)
	env := mps.NewEnvironment(s.Len())
	env.BuildRight(w, s)

	op, err := effham.NewTwoSite(env.L[0], w[0], w[1], env.R[2])
	if err != nil {
		t.Fatalf("NewTwoSite: %v", err)
	}
	return op
}

func TestGroundStateFindsLowestFieldEnergy(t *testing.T) {
	op := twoSiteFieldOp(t)

	x0 := tensor.Zeros(op.Dim())
	for i := 0; i < op.Dim(); i++ {
		x0.SetAt([]int{i}, complex(1, 0))
	}

	e, vec, err := GroundState(op, x0, Options{MaxIter: 16, Tol: 1e-10})
	if err != nil {
		t.Fatalf("GroundState: %v", err)
	}
	// total Sz = -1 (both spins down) minimizes <Z> = sum of individual Sz.
	if e > -0.99 || e < -1.01 {
		t.Fatalf("ground energy = %v, want approx -1", e)
	}
	if n := norm(vec); n < 0.99 || n > 1.01 {
		t.Fatalf("Ritz vector not normalized: |v| = %v", n)
	}
}

func TestEvolvePreservesNorm(t *testing.T) {
	op := twoSiteFieldOp(t)

	x0 := tensor.Zeros(op.Dim())
	for i := 0; i < op.Dim(); i++ {
		x0.SetAt([]int{i}, complex(1, 0))
	}
	before := norm(x0)

	out, err := Evolve(op, x0, complex(0, -0.1), Options{MaxIter: 8, Tol: 1e-10})
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	after := norm(out)
	if cmplx.Abs(complex(after-before, 0)) > 1e-3 {
		t.Fatalf("norm not preserved under unitary evolution: before %v after %v", before, after)
	}
}
