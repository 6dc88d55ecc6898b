package channel

import "testing"

func TestValidateAcceptsWellFormedList(t *testing.T) {
	l := List{
		Field{Species: "spin", Op: "Z", W: 0.5},
		FiniteRangeCoupling{OpA: "X", OpB: "X", Delta: 1, W: 1},
		ExpChannelCoupling{OpA: "X", OpB: "X", Amp: 1, Lambda: 0.5},
		BosonOnly{Op: "n", W: 1},
		SpinBosonInteraction{
			SpinSubChannels: List{Field{Species: "spin", Op: "S+", W: 1}},
			BosonOp:         "a",
			Wb:              0.3,
		},
	}
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsNonPositiveDelta(t *testing.T) {
	l := List{FiniteRangeCoupling{OpA: "X", OpB: "X", Delta: 0, W: 1}}
	if err := l.Validate(); err == nil {
		t.Fatalf("expected CONFIG_INVALID for Delta=0")
	}
}

func TestValidateRejectsLambdaOutsideUnitCircle(t *testing.T) {
	l := List{ExpChannelCoupling{OpA: "X", OpB: "X", Amp: 1, Lambda: 1.01}}
	if err := l.Validate(); err == nil {
		t.Fatalf("expected CONFIG_INVALID for |lambda|>=1")
	}
	l = List{ExpChannelCoupling{OpA: "X", OpB: "X", Amp: 1, Lambda: 0}}
	if err := l.Validate(); err == nil {
		t.Fatalf("expected CONFIG_INVALID for |lambda|<=0")
	}
}

func TestValidateRejectsBadPowerLawParams(t *testing.T) {
	cases := []PowerLawCoupling{
		{OpA: "X", OpB: "X", J: 1, Alpha: 1, K: 0, N: 10},
		{OpA: "X", OpB: "X", J: 1, Alpha: 1, K: 5, N: 3},
		{OpA: "X", OpB: "X", J: 1, Alpha: 0, K: 1, N: 10},
	}
	for i, c := range cases {
		if err := (List{c}).Validate(); err == nil {
			t.Fatalf("case %d: expected CONFIG_INVALID for %+v", i, c)
		}
	}
}

func TestFitRejectsInvertedKN(t *testing.T) {
	if _, err := Fit(1.5, 5, 3); err == nil {
		t.Fatalf("expected CONFIG_INVALID for K>N")
	}
}

func TestFitApproximatesPowerLawWithinBound(t *testing.T) {
	alpha, k, n := 1.5, 4, 30
	terms, err := Fit(alpha, k, n)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(terms) != k {
		t.Fatalf("len(terms) = %d, want %d", len(terms), k)
	}
	for _, term := range terms {
		if m := cmplxAbs(term.Lambda); m >= 1+1e-6 {
			t.Fatalf("|lambda|=%v exceeds the unit-circle bound", m)
		}
	}
	if got := maxRelativeError(terms, alpha, n); got > 0.05 {
		t.Fatalf("max relative error = %v, want <= 0.05", got)
	}
}

func TestFitRejectsTooTightErrorBound(t *testing.T) {
	// A single exponential term cannot come close to reproducing a slowly
	// decaying power law over a long range; an unreasonably tight bound
	// should be rejected as an invalid fit rather than silently accepted.
	_, err := Fit(0.5, 1, 40, FitOptions{MaxRelError: 1e-9})
	if err == nil {
		t.Fatalf("expected INVALID_FIT for an unattainable error bound")
	}
}
