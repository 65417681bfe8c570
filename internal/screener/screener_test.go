package screener

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBetaScoreAveragesOutperformanceAgainstBTCAndETH(t *testing.T) {
	got := betaScoreFromDeltas(8, 6)
	want := ((8.0 + 6.0) / 2) * 10
	if !almostEqual(got, want) {
		t.Fatalf("betaScoreFromDeltas = %v, want %v", got, want)
	}
}

func TestBetaScoreClampedToZeroWhenUnderperforming(t *testing.T) {
	if got := betaScoreFromDeltas(-15, -6); got != 0 {
		t.Fatalf("betaScoreFromDeltas = %v, want 0 (clamped)", got)
	}
}

func TestBetaScoreClampedToHundredWhenExtremeOutperformance(t *testing.T) {
	if got := betaScoreFromDeltas(500, 500); got != 100 {
		t.Fatalf("betaScoreFromDeltas = %v, want 100 (clamped)", got)
	}
}

func TestVolumeScoreStepFunction(t *testing.T) {
	cases := []struct {
		volume float64
		want   float64
	}{
		{500_000, 20},
		{1_000_000, 40},
		{2_000_000, 60},
		{5_000_000, 80},
		{10_000_000, 100},
	}
	for _, tc := range cases {
		if got := volumeScore(tc.volume, false); got != tc.want {
			t.Fatalf("volumeScore(%v, false) = %v, want %v", tc.volume, got, tc.want)
		}
	}
}

func TestVolumeScoreSurgeBonusClampsAtHundred(t *testing.T) {
	got := volumeScore(10_000_000, true)
	if got != 100 {
		t.Fatalf("volumeScore with surge bonus = %v, want 100 (clamped from 120)", got)
	}
}

func TestVolumeScoreSurgeBonusAppliesBelowCeiling(t *testing.T) {
	got := volumeScore(1_000_000, true)
	if got != 60 {
		t.Fatalf("volumeScore(1_000_000, true) = %v, want 60 (40 + 20 surge bonus)", got)
	}
}

func TestClampBounds(t *testing.T) {
	if clamp(-5, 0, 100) != 0 {
		t.Fatal("clamp should floor below the lower bound")
	}
	if clamp(150, 0, 100) != 100 {
		t.Fatal("clamp should ceiling above the upper bound")
	}
	if clamp(50, 0, 100) != 50 {
		t.Fatal("clamp should pass through values within bounds")
	}
}
