// Package channel implements the Hamiltonian description language: a closed
// tagged union of physics terms (channels) that the fsm package compiles
// into a weighted transition graph, and the sum-of-exponentials fit that
// turns a power-law coupling into a bounded number of such terms.
package channel

import (
	"math"

	"github.com/pkg/errors"
)

// Channel is the closed tagged union of Hamiltonian term descriptions.
// Implementations live in this file; the set is intentionally closed so the
// fsm compiler can switch exhaustively over concrete types.
type Channel interface {
	channel()
}

// Field is a single-site term w * sum_i O_i.
type Field struct {
	Species string // catalog key selecting which sites this channel applies to, e.g. "spin", "boson".
	Op      string
	W       complex128
}

func (Field) channel() {}

// FiniteRangeCoupling is a two-site term w * sum_i A_i B_{i+Delta}, Delta>=1.
type FiniteRangeCoupling struct {
	OpA, OpB string
	Delta    int
	W        complex128
}

func (FiniteRangeCoupling) channel() {}

// ExpChannelCoupling is amp * sum_{i<j} A_i B_j lambda^(j-i), 0<|lambda|<1.
type ExpChannelCoupling struct {
	OpA, OpB string
	Amp      complex128
	Lambda   complex128
}

func (ExpChannelCoupling) channel() {}

// PowerLawCoupling is J * sum_{i<j} A_i B_j / (j-i)^alpha, compiled to a sum
// of K exponentials via Fit.
type PowerLawCoupling struct {
	OpA, OpB string
	J        complex128
	Alpha    float64
	K        int
	N        int
}

func (PowerLawCoupling) channel() {}

// BosonOnly is a single-site term acting only on the boson site.
type BosonOnly struct {
	Op string
	W  complex128
}

func (BosonOnly) channel() {}

// SpinBosonInteraction is a product of a spin-side sub-channel list with a
// boson operator, coupled with weight Wb.
type SpinBosonInteraction struct {
	SpinSubChannels []Channel
	BosonOp         string
	Wb              complex128
}

func (SpinBosonInteraction) channel() {}

// List is a channel list, closed under composition: sums of terms are
// represented as multiple channels.
type List []Channel

// Validate checks the structural invariants each channel must satisfy
// before FSM compilation, returning a CONFIG_INVALID error on the first
// violation.
func (l List) Validate() error {
	for i, c := range l {
		if err := validateOne(c); err != nil {
			return errors.Wrapf(err, "channel %d", i)
		}
	}
	return nil
}

func validateOne(c Channel) error {
	switch t := c.(type) {
	case Field:
		return nil
	case FiniteRangeCoupling:
		if t.Delta < 1 {
			return errors.Errorf("CONFIG_INVALID: FiniteRangeCoupling requires Delta>=1, got %d", t.Delta)
		}
		return nil
	case ExpChannelCoupling:
		mod := cmplxAbs(t.Lambda)
		if mod <= 0 || mod >= 1 {
			return errors.Errorf("CONFIG_INVALID: ExpChannelCoupling requires 0<|lambda|<1, got %v", mod)
		}
		return nil
	case PowerLawCoupling:
		if t.K < 1 || t.N < t.K {
			return errors.Errorf("CONFIG_INVALID: PowerLawCoupling requires 1<=K<=N, got K=%d N=%d", t.K, t.N)
		}
		if t.Alpha <= 0 {
			return errors.Errorf("CONFIG_INVALID: PowerLawCoupling requires alpha>0, got %v", t.Alpha)
		}
		return nil
	case BosonOnly:
		return nil
	case SpinBosonInteraction:
		for _, sub := range t.SpinSubChannels {
			if err := validateOne(sub); err != nil {
				return errors.Wrap(err, "")
			}
		}
		return nil
	default:
		return errors.Errorf("CONFIG_INVALID: unrecognized channel type %T", c)
	}
}

func cmplxAbs(z complex128) float64 {
	re, im := real(z), imag(z)
	return math.Sqrt(re*re + im*im)
}
