package mps

import "testing"

func TestChooseRankAppliesPerValueCutoff(t *testing.T) {
	svals := []float64{1.0, 0.1, 0.01}
	// 0.1/1.0 = 0.1 >= 0.05, so both the first two survive; only the third
	// (0.01/1.0 = 0.01 < 0.05) is cut.
	if r := chooseRank(svals, TruncateOptions{Cutoff: 0.05}); r != 2 {
		t.Fatalf("chooseRank = %d, want 2", r)
	}
}

func TestChooseRankTieBreakKeepsLargerIndex(t *testing.T) {
	svals := []float64{1.0, 0.5, 0.5, 0.1}
	// Cutoff exactly on the tied pair: both ties survive since the
	// comparison is >=, i.e. the larger index of the tie is kept.
	if r := chooseRank(svals, TruncateOptions{Cutoff: 0.5}); r != 3 {
		t.Fatalf("chooseRank = %d, want 3", r)
	}
}

func TestChooseRankCombinesCutoffAndMaxRank(t *testing.T) {
	svals := []float64{1.0, 0.9, 0.8, 0.7}
	if r := chooseRank(svals, TruncateOptions{Cutoff: 0.05, MaxRank: 2}); r != 2 {
		t.Fatalf("chooseRank = %d, want 2", r)
	}
}

func TestChooseRankNeverReturnsZero(t *testing.T) {
	svals := []float64{1.0, 1e-12}
	if r := chooseRank(svals, TruncateOptions{Cutoff: 0.5}); r != 1 {
		t.Fatalf("chooseRank = %d, want 1", r)
	}
}
