package collector

import (
	"testing"

	"binance-trading-bot/internal/apperr"
)

func TestPrependReferenceCoinsAddsBothWhenAbsent(t *testing.T) {
	got := prependReferenceCoins([]string{"SOL/USDT", "ADA/USDT"})
	want := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "ADA/USDT"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPrependReferenceCoinsDoesNotDuplicate(t *testing.T) {
	got := prependReferenceCoins([]string{"ETH/USDT", "SOL/USDT", "BTC/USDT"})
	want := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v (duplicates should be dropped)", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIsRateLimitedMatchesTransientFetchKindOnly(t *testing.T) {
	if !isRateLimited(apperr.New(apperr.KindTransientFetch, "rate limited")) {
		t.Fatal("a transient fetch error should be treated as rate limiting")
	}
	if isRateLimited(apperr.New(apperr.KindValidation, "bad input")) {
		t.Fatal("a validation error should not be treated as rate limiting")
	}
	if isRateLimited(nil) {
		t.Fatal("nil error should not be treated as rate limiting")
	}
}
