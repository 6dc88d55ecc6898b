// Package runconfig decodes a run's JSON description (chain, channels, and
// algorithm options) the way cmd/run/main.go's flag-based run directory
// does for the transverse-field Ising sweep, generalized from a fixed
// {l, h, bondDim, tol} tuple to an arbitrary channel.List and site.Chain so
// that cmd/mpsrun can drive any Hamiltonian describable by the channel IR.
package runconfig

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/fumin/mpscore/channel"
	"github.com/fumin/mpscore/site"
)

// FnameConfig is the JSON file a run directory carries its description in.
const FnameConfig = "config.json"

// Complex is a JSON-marshalable stand-in for complex128, which
// encoding/json cannot encode directly.
type Complex struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

// Value returns the complex128 this pair encodes.
func (c Complex) Value() complex128 { return complex(c.Re, c.Im) }

// SiteSpec describes one local Hilbert space in the chain.
type SiteSpec struct {
	Species string  `json:"species"`         // "spin" or "boson"
	Spin    float64 `json:"spin,omitempty"`  // for species == "spin"
	NMax    int     `json:"n_max,omitempty"` // for species == "boson"
}

func (s SiteSpec) build(cat *site.Catalog) (*site.Site, error) {
	switch s.Species {
	case "spin":
		return cat.Spin(s.Spin)
	case "boson":
		return cat.Boson(s.NMax)
	default:
		return nil, errors.Errorf("CONFIG_INVALID: unrecognized site species %q", s.Species)
	}
}

// ChannelSpec is the JSON encoding of one channel.Channel, discriminated by
// Type. Fields irrelevant to a given Type are left at their zero value.
type ChannelSpec struct {
	Type string `json:"type"`

	Species string  `json:"species,omitempty"`
	Op      string  `json:"op,omitempty"`
	OpA     string  `json:"op_a,omitempty"`
	OpB     string  `json:"op_b,omitempty"`
	W       Complex `json:"w,omitempty"`
	Delta   int     `json:"delta,omitempty"`
	Amp     Complex `json:"amp,omitempty"`
	Lambda  Complex `json:"lambda,omitempty"`
	J       Complex `json:"j,omitempty"`
	Alpha   float64 `json:"alpha,omitempty"`
	K       int     `json:"k,omitempty"`
	N       int     `json:"n,omitempty"`

	SpinSubChannels []ChannelSpec `json:"spin_sub_channels,omitempty"`
	BosonOp         string        `json:"boson_op,omitempty"`
	Wb              Complex       `json:"wb,omitempty"`
}

// Build converts a ChannelSpec into the channel.Channel it describes.
func (c ChannelSpec) Build() (channel.Channel, error) {
	switch c.Type {
	case "field":
		return channel.Field{Species: c.Species, Op: c.Op, W: c.W.Value()}, nil
	case "boson_only":
		return channel.BosonOnly{Op: c.Op, W: c.W.Value()}, nil
	case "finite_range":
		return channel.FiniteRangeCoupling{OpA: c.OpA, OpB: c.OpB, Delta: c.Delta, W: c.W.Value()}, nil
	case "exp":
		return channel.ExpChannelCoupling{OpA: c.OpA, OpB: c.OpB, Amp: c.Amp.Value(), Lambda: c.Lambda.Value()}, nil
	case "power_law":
		return channel.PowerLawCoupling{OpA: c.OpA, OpB: c.OpB, J: c.J.Value(), Alpha: c.Alpha, K: c.K, N: c.N}, nil
	case "spin_boson":
		subs := make([]channel.Channel, len(c.SpinSubChannels))
		for i, sub := range c.SpinSubChannels {
			built, err := sub.Build()
			if err != nil {
				return nil, errors.Wrapf(err, "spin sub-channel %d", i)
			}
			subs[i] = built
		}
		return channel.SpinBosonInteraction{SpinSubChannels: subs, BosonOp: c.BosonOp, Wb: c.Wb.Value()}, nil
	default:
		return nil, errors.Errorf("CONFIG_INVALID: unrecognized channel type %q", c.Type)
	}
}

// AlgorithmSpec configures the sweep the run performs: a DMRG ground-state
// search, optionally followed by a series of TDVP time steps.
type AlgorithmSpec struct {
	BondDim   int     `json:"bond_dim"`
	Cutoff    float64 `json:"cutoff"`
	MaxRank   int     `json:"chi_max,omitempty"` // caps the truncated bond dimension; zero leaves it unbounded.
	MaxSweeps int     `json:"max_sweeps,omitempty"`
	Tol       float64 `json:"tol,omitempty"`
	KrylovDim int     `json:"krylov_dim,omitempty"` // Lanczos/Krylov subspace size per local update; zero takes solver's default.

	Dt    Complex `json:"dt,omitempty"`
	Steps int     `json:"steps,omitempty"`
}

// Config is a full run description: the chain, the Hamiltonian's channels,
// and the algorithm to run.
type Config struct {
	Sites     []SiteSpec    `json:"sites"`
	Channels  []ChannelSpec `json:"channels"`
	Algorithm AlgorithmSpec `json:"algorithm"`
}

// Load reads and decodes a Config from path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &cfg, nil
}

// BuildChain constructs the site.Chain this config describes, caching
// constructed sites in cat.
func (c *Config) BuildChain(cat *site.Catalog) (*site.Chain, error) {
	sites := make([]*site.Site, len(c.Sites))
	for i, spec := range c.Sites {
		s, err := spec.build(cat)
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		sites[i] = s
	}
	return &site.Chain{Sites: sites}, nil
}

// BuildChannels converts this config's channel specs into a channel.List
// and validates it.
func (c *Config) BuildChannels() (channel.List, error) {
	chans := make(channel.List, len(c.Channels))
	for i, spec := range c.Channels {
		ch, err := spec.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "channel %d", i)
		}
		chans[i] = ch
	}
	if err := chans.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return chans, nil
}
