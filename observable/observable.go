// Package observable reads expectation values, correlators, and
// entanglement diagnostics off a finalized mps.State, generalizing
// mps/mps.go's InnerProduct/LExpressions contraction style from "the whole
// Hamiltonian MPO" to "a single- or double-site operator insertion",
// reusing mps.Expectation directly by representing the inserted operator as
// a trivial bond-dimension-one MPO.
package observable

import (
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/tensor"

	"github.com/fumin/mpscore/mpo"
	"github.com/fumin/mpscore/mps"
	"github.com/fumin/mpscore/site"
)

// SiteExpectation returns <s|O_pos|s>/<s|s> for the named operator on the
// species occupying pos.
func SiteExpectation(chain *site.Chain, s *mps.State, pos int, op string) (complex128, error) {
	return insertionExpectation(chain, s, map[int]string{pos: op})
}

// Correlator returns <s|Oa_posA Ob_posB|s>/<s|s>. posA and posB must differ;
// use SiteExpectation for a single-site operator.
func Correlator(chain *site.Chain, s *mps.State, posA int, opA string, posB int, opB string) (complex128, error) {
	if posA == posB {
		return 0, errors.Errorf("CONFIG_INVALID: correlator positions must differ, got %d twice", posA)
	}
	return insertionExpectation(chain, s, map[int]string{posA: opA, posB: opB})
}

// SubsystemExpectation returns <s|sum_{i=l}^{m} O_i|s>/<s|s>, the expectation
// of a single-site operator summed over a contiguous subsystem l..m
// inclusive.
func SubsystemExpectation(chain *site.Chain, s *mps.State, l, m int, op string) (complex128, error) {
	if l < 0 || m >= chain.Len() || l > m {
		return 0, errors.Errorf("DIMENSION_MISMATCH: subsystem range [%d, %d] invalid for a %d-site chain", l, m, chain.Len())
	}
	var sum complex128
	for i := l; i <= m; i++ {
		v, err := SiteExpectation(chain, s, i, op)
		if err != nil {
			return 0, errors.Wrapf(err, "site %d", i)
		}
		sum += v
	}
	return sum, nil
}

// insertionExpectation builds a bond-dimension-one MPO that is the identity
// everywhere except at the given positions, and evaluates its expectation
// value against s.
func insertionExpectation(chain *site.Chain, s *mps.State, ops map[int]string) (complex128, error) {
	n := chain.Len()
	w := make(mpo.MPO, n)
	for i := 0; i < n; i++ {
		symbol := "I"
		if o, ok := ops[i]; ok {
			symbol = o
		}
		sp := chain.At(i)
		m, err := sp.Operator(symbol)
		if err != nil {
			return 0, errors.Wrapf(err, "site %d", i)
		}
		d := sp.LocalDim()
		t := tensor.Zeros(1, 1, d, d)
		for up := 0; up < d; up++ {
			for down := 0; down < d; down++ {
				t.SetAt([]int{0, 0, up, down}, complex64(m.At(up, down)))
			}
		}
		w[i] = t
	}

	norm2 := mps.InnerProduct(s, s)
	if cAbs(complex128(norm2)) < 1e-12 {
		return 0, errors.Errorf("NUMERICAL_BREAKDOWN: state norm is numerically zero")
	}
	value := mps.Expectation(w, s)
	return complex128(value) / complex128(norm2), nil
}

// SchmidtSpectrum returns the Schmidt coefficients across the bond between
// positions bond and bond+1, by canonicalizing s about bond (a gauge choice
// that leaves the physical state unchanged) and taking a full, untruncated
// SVD of the resulting two-site block.
func SchmidtSpectrum(s *mps.State, bond int) ([]float64, error) {
	if bond < 0 || bond > s.Len()-2 {
		return nil, errors.Errorf("DIMENSION_MISMATCH: bond %d out of range for a %d-site chain", bond, s.Len())
	}
	mps.Canonicalize(s, bond)

	a, b := s.Sites[bond], s.Sites[bond+1]
	block := tensor.Contract(tensor.Zeros(1), a, b, [][2]int{{mps.RightAxis, mps.LeftAxis}})
	shape := block.Shape()

	split, err := mps.Split(block, shape[1], shape[2], mps.TruncateOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return split.Values, nil
}

// RenyiEntropy computes the Renyi-alpha entanglement entropy from a Schmidt
// spectrum (singular values, not their squares). The squared values are
// renormalized to sum to 1 before use. alpha = 1 is the von Neumann
// entropy, computed as its own limiting case rather than dividing by zero.
func RenyiEntropy(values []float64, alpha float64) (float64, error) {
	if alpha < 0 {
		return 0, errors.Errorf("CONFIG_INVALID: Renyi alpha must be non-negative, got %v", alpha)
	}
	probs := make([]float64, len(values))
	var total float64
	for i, v := range values {
		p := v * v
		probs[i] = p
		total += p
	}
	if total < 1e-12 {
		return 0, errors.Errorf("NUMERICAL_BREAKDOWN: Schmidt spectrum has zero weight")
	}
	for i := range probs {
		probs[i] /= total
	}

	if math.Abs(alpha-1) < 1e-9 {
		var s float64
		for _, p := range probs {
			if p <= 0 {
				continue
			}
			s -= p * math.Log(p)
		}
		return s, nil
	}

	var sum float64
	for _, p := range probs {
		if p <= 0 {
			continue
		}
		sum += math.Pow(p, alpha)
	}
	if sum <= 0 {
		return 0, errors.Errorf("NUMERICAL_BREAKDOWN: Renyi sum is non-positive")
	}
	return math.Log(sum) / (1 - alpha), nil
}

func cAbs(z complex128) float64 {
	re, im := real(z), imag(z)
	return math.Sqrt(re*re + im*im)
}
