package exactdiag

import (
	"math"
	"testing"

	"github.com/fumin/mpscore/channel"
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

func TestBuildFieldGroundEnergy(t *testing.T) {
	chain := spinChain(t, 3)
	h, err := Build(chain, channel.List{channel.Field{Species: "spin", Op: "Z", W: 0.5}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	vvs := h.Eigen()
	got := real(vvs[0].Val)
	want := -0.75
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("ground energy = %v, want %v", got, want)
	}
}

func TestBuildFiniteRangeCouplingGroundEnergy(t *testing.T) {
	chain := spinChain(t, 2)
	h, err := Build(chain, channel.List{channel.FiniteRangeCoupling{OpA: "Z", OpB: "Z", Delta: 1, W: 1}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	vvs := h.Eigen()
	got := real(vvs[0].Val)
	want := -0.25
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("ground energy = %v, want %v", got, want)
	}
}

func TestBuildFourSiteFieldMatchesDMRGGroundEnergy(t *testing.T) {
	// Cross-checks against the -0.5*n ground energy that sweep's DMRG test
	// finds for the same Field Hamiltonian, giving an independent exact
	// reference for a chain small enough to diagonalize directly.
	n := 4
	chain := spinChain(t, n)
	h, err := Build(chain, channel.List{channel.Field{Species: "spin", Op: "Z", W: 1}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	vvs := h.Eigen()
	got := real(vvs[0].Val)
	want := -0.5 * float64(n)
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("ground energy = %v, want %v", got, want)
	}
}

func TestBuildExpChannelCouplingSumsGeometricWeights(t *testing.T) {
	chain := spinChain(t, 3)
	h, err := Build(chain, channel.List{channel.ExpChannelCoupling{OpA: "Z", OpB: "Z", Amp: 1, Lambda: 0.5}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Diagonal in the Z basis: pairs (0,1) weight 0.5, (0,2) weight 0.25,
	// (1,2) weight 0.5, each contributing +-w depending on aligned spins.
	// The all-up state (Z=+0.5 everywhere) has energy 0.25*(0.5+0.25+0.5)=0.3125.
	vvs := h.Eigen()
	found := false
	for _, vv := range vvs {
		if math.Abs(real(vv.Val)-0.3125) < 1e-6 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an eigenvalue near 0.3125 among %v", vvs)
	}
}

func TestSingleBosonIndexRejectsNoBosonSite(t *testing.T) {
	chain := spinChain(t, 2)
	if _, err := singleBosonIndex(chain); err == nil {
		t.Fatalf("expected CONFIG_INVALID when the chain has no boson site")
	}
}

func TestBuildSpinBosonInteractionGroundEnergy(t *testing.T) {
	cat := site.NewCatalog()
	half, err := cat.Spin(0.5)
	if err != nil {
		t.Fatalf("Spin(0.5): %v", err)
	}
	boson, err := cat.Boson(1)
	if err != nil {
		t.Fatalf("Boson(1): %v", err)
	}
	chain := &site.Chain{Sites: []*site.Site{half, boson}}

	sub := channel.List{channel.Field{Species: "spin", Op: "Z", W: 1}}
	chans := channel.List{channel.SpinBosonInteraction{SpinSubChannels: sub, BosonOp: "n", Wb: 1}}
	h, err := Build(chain, chans)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// H = Z_spin (x) n_boson. Ground energy is the most negative product of
	// a spin eigenvalue (+-0.5) and a boson occupation (0 or 1): -0.5*1.
	vvs := h.Eigen()
	got := real(vvs[0].Val)
	want := -0.5
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("ground energy = %v, want %v", got, want)
	}
}
