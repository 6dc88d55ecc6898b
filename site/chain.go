package site

import "github.com/pkg/errors"

// Chain is an ordered, possibly heterogeneous sequence of local Hilbert
// spaces. Ordering is significant and is part of the MPO/MPS contract.
type Chain struct {
	Sites []*Site
}

// Len returns N, the chain length.
func (c *Chain) Len() int { return len(c.Sites) }

// At returns the site at position i.
func (c *Chain) At(i int) *Site { return c.Sites[i] }

// ScalarKind is the promotion of every site's scalar kind.
func (c *Chain) ScalarKind() Kind {
	kind := KindReal
	for _, s := range c.Sites {
		kind = kind.Promote(s.ScalarKind())
	}
	return kind
}

// Catalog caches constructed sites keyed by their (species, parameters) so
// that identical sites in a chain, or across chains, share operator tables
// and eigenbases. It is safe for concurrent read-only use once populated;
// callers construct one Catalog per "runtime context" rather than relying
// on a package-global cache.
type Catalog struct {
	spins  map[float64]*Site
	bosons map[int]*Site
}

// NewCatalog returns an empty site catalog.
func NewCatalog() *Catalog {
	return &Catalog{spins: make(map[float64]*Site), bosons: make(map[int]*Site)}
}

// Spin returns the cached spin-S site, constructing and caching it on first
// use.
func (c *Catalog) Spin(s float64) (*Site, error) {
	if st, ok := c.spins[s]; ok {
		return st, nil
	}
	st, err := NewSpin(s)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	c.spins[s] = st
	return st, nil
}

// Boson returns the cached truncated-boson site with cutoff nMax,
// constructing and caching it on first use.
func (c *Catalog) Boson(nMax int) (*Site, error) {
	if st, ok := c.bosons[nMax]; ok {
		return st, nil
	}
	st, err := NewBoson(nMax)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	c.bosons[nMax] = st
	return st, nil
}
