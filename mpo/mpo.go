// Package mpo assembles a matrix product operator from a compiled fsm.Graph
// and a site.Chain: a shared bulk tensor accumulated from the graph's edges
// at every position, with the first and last site boundary-reduced to bond
// dimension one.
package mpo

import (
	"github.com/pkg/errors"

	"github.com/fumin/tensor"

	"github.com/fumin/mpscore/fsm"
	"github.com/fumin/mpscore/site"
)

// MPO axis convention, matching mps: [left, right, up, down] = [chi_left,
// chi_right, d_up, d_down].
const (
	LeftAxis  = 0
	RightAxis = 1
	UpAxis    = 2
	DownAxis  = 3
)

// MPO is one operator tensor per chain position.
type MPO []*tensor.Dense

// Build assembles the MPO for a chain of length N >= 2 from a compiled
// transition graph.
func Build(g *fsm.Graph, chain *site.Chain) (MPO, error) {
	n := chain.Len()
	if n < 2 {
		return nil, errors.Errorf("DIMENSION_MISMATCH: chain length %d < 2", n)
	}

	w := make(MPO, n)
	for i := 0; i < n; i++ {
		bulk, err := bulkTensor(g, chain.At(i))
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", i)
		}
		w[i] = bulk
	}

	w[0] = reduceLeft(w[0], g.Chi)
	w[n-1] = reduceRight(w[n-1], g.Chi)
	return w, nil
}

// bulkTensor accumulates B[source-1, target-1, :, :] += weight * operator
// for every graph edge, resolving the operator symbol against the given
// site's species so a heterogeneous chain's spin and boson positions each
// get the right factor from the same edge.
func bulkTensor(g *fsm.Graph, s *site.Site) (*tensor.Dense, error) {
	d := s.LocalDim()
	b := tensor.Zeros(g.Chi, g.Chi, d, d)

	for _, e := range g.Edges {
		symbol := e.SpinOp
		if s.Species == site.SpeciesBoson {
			symbol = e.BosonOp
		}
		op, err := s.Operator(symbol)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}

		row := e.Source - 1
		col := e.Target - 1
		for up := 0; up < d; up++ {
			for down := 0; down < d; down++ {
				v := op.At(up, down)
				if v == 0 {
					continue
				}
				idx := []int{row, col, up, down}
				cur := b.At(idx...)
				b.SetAt(idx, cur+complex64(e.Weight)*complex64(v))
			}
		}
	}
	return b, nil
}

// reduceLeft selects the row chi (the "not yet started" idle state), the
// only row a trivial left boundary bond can carry.
func reduceLeft(bulk *tensor.Dense, chi int) *tensor.Dense {
	sel := tensor.Zeros(1, chi)
	sel.SetAt([]int{0, chi - 1}, 1)
	return tensor.Contract(tensor.Zeros(1), sel, bulk, [][2]int{{1, 0}})
}

// reduceRight selects the column 1 (the "all terms closed" idle state), the
// only column a trivial right boundary bond can carry.
func reduceRight(bulk *tensor.Dense, chi int) *tensor.Dense {
	sel := tensor.Zeros(chi, 1)
	sel.SetAt([]int{0, 0}, 1)
	reduced := tensor.Contract(tensor.Zeros(1), bulk, sel, [][2]int{{1, 0}})
	// Contract places the surviving axes of bulk (left, up, down) before the
	// surviving axis of sel (a trivial right axis); restore [left, right,
	// up, down].
	return reduced.Transpose(0, 3, 1, 2)
}
