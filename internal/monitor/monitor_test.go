package monitor

import (
	"testing"
	"time"

	"binance-trading-bot/internal/screener"
)

func fixedHour(hour int) time.Time {
	return time.Date(2026, 7, 31, hour, 0, 0, 0, time.UTC)
}

func TestFilterAndRankKeepsTopNAboveThreshold(t *testing.T) {
	candidates := []screener.Candidate{
		{Symbol: "AAA", TotalScore: 90},
		{Symbol: "BBB", TotalScore: 50},
		{Symbol: "CCC", TotalScore: 75},
		{Symbol: "DDD", TotalScore: 61},
	}

	got := filterAndRank(candidates, 60, 2)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Symbol != "AAA" || got[1].Symbol != "CCC" {
		t.Errorf("got %v, want [AAA CCC] in that order", got)
	}
}

func TestFilterAndRankEmptyWhenNoneQualify(t *testing.T) {
	candidates := []screener.Candidate{{Symbol: "AAA", TotalScore: 10}}
	got := filterAndRank(candidates, 60, 5)
	if len(got) != 0 {
		t.Fatalf("expected no survivors below the threshold, got %v", got)
	}
}

func TestInPreferredWindowWrapsAroundMidnight(t *testing.T) {
	m := &Monitor{cfg: Config{PreferredWindowStart: 22, PreferredWindowEnd: 6}}

	cases := map[int]bool{21: false, 22: true, 0: true, 5: true, 6: false, 12: false}
	for hour, want := range cases {
		now := fixedHour(hour)
		if got := m.inPreferredWindow(now); got != want {
			t.Errorf("hour %d: inPreferredWindow = %v, want %v", hour, got, want)
		}
	}
}
