// Package fsm compiles a channel.List into a weighted transition graph over
// auxiliary states: vertex 1 is the initial idle state, vertex chi is the
// final idle state, and every simple path 1..chi corresponds to one
// additive term of the Hamiltonian. The graph's vertex count chi is the
// bond dimension of the MPO the mpo package assembles from it.
package fsm

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/fumin/mpscore/channel"
)

const (
	initial = 1
	// finalPlaceholder stands in for the not-yet-numbered final idle state
	// during construction; Build's final pass relabels it to chi = ns+1.
	finalPlaceholder = -1

	identityOp = "I"
)

// Edge is one transition (source, target, op, weight) of the graph. A
// heterogeneous spin/boson chain needs an operator symbol per species at
// every edge, since a SpinBosonInteraction attaches its boson operator
// while leaving the identity on every site the edge doesn't otherwise
// touch: SpinOp is the symbol resolved against spin sites, BosonOp against
// boson sites. Both default to the identity, so a purely single-species
// channel only needs to set the one field its species uses.
type Edge struct {
	Source, Target int
	SpinOp         string
	BosonOp        string
	Weight         complex128
}

// Graph is the compiled weighted transition multigraph.
type Graph struct {
	Chi   int
	Edges []Edge
}

type builder struct {
	ns    int
	edges []Edge
}

// Build compiles a channel list into a transition graph.
func Build(channels channel.List) (*Graph, error) {
	if err := channels.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	b := &builder{ns: 1}
	b.edges = append(b.edges,
		Edge{Source: initial, Target: initial, SpinOp: identityOp, BosonOp: identityOp, Weight: 1},
		Edge{Source: finalPlaceholder, Target: finalPlaceholder, SpinOp: identityOp, BosonOp: identityOp, Weight: 1},
	)

	for i, c := range channels {
		if err := b.emit(c, 1); err != nil {
			return nil, errors.Wrapf(err, "channel %d", i)
		}
	}

	chi := b.ns + 1
	for i := range b.edges {
		if b.edges[i].Source == finalPlaceholder {
			b.edges[i].Source = chi
		}
		if b.edges[i].Target == finalPlaceholder {
			b.edges[i].Target = chi
		}
	}

	return &Graph{Chi: chi, Edges: dedup(b.edges)}, nil
}

func (b *builder) emit(c channel.Channel, wScale complex128) error {
	switch t := c.(type) {
	case channel.Field:
		e := Edge{Source: finalPlaceholder, Target: initial, Weight: t.W * wScale}
		if t.Species == "boson" {
			e.SpinOp, e.BosonOp = identityOp, t.Op
		} else {
			e.SpinOp, e.BosonOp = t.Op, identityOp
		}
		b.edges = append(b.edges, e)

	case channel.BosonOnly:
		b.edges = append(b.edges, Edge{
			Source: finalPlaceholder, Target: initial,
			SpinOp: identityOp, BosonOp: t.Op, Weight: t.W * wScale,
		})

	case channel.FiniteRangeCoupling:
		base := b.ns
		b.edges = append(b.edges, Edge{Source: base + 1, Target: initial, SpinOp: t.OpA, BosonOp: identityOp, Weight: 1})
		for k := 1; k <= t.Delta-1; k++ {
			b.edges = append(b.edges, Edge{Source: base + 1 + k, Target: base + k, SpinOp: identityOp, BosonOp: identityOp, Weight: 1})
		}
		b.edges = append(b.edges, Edge{
			Source: finalPlaceholder, Target: base + t.Delta,
			SpinOp: t.OpB, BosonOp: identityOp, Weight: t.W * wScale,
		})
		b.ns += t.Delta

	case channel.ExpChannelCoupling:
		base := b.ns
		b.edges = append(b.edges,
			Edge{Source: base + 1, Target: initial, SpinOp: t.OpA, BosonOp: identityOp, Weight: 1},
			Edge{Source: base + 1, Target: base + 1, SpinOp: identityOp, BosonOp: identityOp, Weight: t.Lambda},
			Edge{Source: finalPlaceholder, Target: base + 1, SpinOp: t.OpB, BosonOp: identityOp, Weight: t.Amp * t.Lambda * wScale},
		)
		b.ns++

	case channel.PowerLawCoupling:
		terms, err := channel.Fit(t.Alpha, t.K, t.N)
		if err != nil {
			return errors.Wrap(err, "")
		}
		for _, term := range terms {
			base := b.ns
			b.edges = append(b.edges,
				Edge{Source: base + 1, Target: initial, SpinOp: t.OpA, BosonOp: identityOp, Weight: 1},
				Edge{Source: base + 1, Target: base + 1, SpinOp: identityOp, BosonOp: identityOp, Weight: term.Lambda},
				Edge{Source: finalPlaceholder, Target: base + 1, SpinOp: t.OpB, BosonOp: identityOp, Weight: t.J * term.Nu * term.Lambda * wScale},
			)
			b.ns++
		}

	case channel.SpinBosonInteraction:
		start := len(b.edges)
		for i, sub := range t.SpinSubChannels {
			if err := b.emit(sub, wScale); err != nil {
				return errors.Wrapf(err, "spin sub-channel %d", i)
			}
		}
		for i := start; i < len(b.edges); i++ {
			if b.edges[i].Source == finalPlaceholder {
				b.edges[i].BosonOp = t.BosonOp
				b.edges[i].Weight *= t.Wb
			}
		}

	default:
		return errors.Errorf("CONFIG_INVALID: unrecognized channel type %T", c)
	}
	return nil
}

// dedup merges parallel edges with identical (source, target, spinOp,
// bosonOp) by weight addition.
func dedup(edges []Edge) []Edge {
	type key struct {
		source, target  int
		spinOp, bosonOp string
	}
	index := make(map[key]int)
	merged := make([]Edge, 0, len(edges))
	for _, e := range edges {
		k := key{e.Source, e.Target, e.SpinOp, e.BosonOp}
		if i, ok := index[k]; ok {
			merged[i].Weight += e.Weight
			continue
		}
		index[k] = len(merged)
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Source != merged[j].Source {
			return merged[i].Source < merged[j].Source
		}
		return merged[i].Target < merged[j].Target
	})
	return merged
}
