package exchange

import "testing"

func TestFilterSpotUniverseKeepsUSDTTradingSpotOnly(t *testing.T) {
	raw := []rawSymbolInfo{
		{Symbol: "BTCUSDT", Status: "TRADING", BaseAsset: "BTC", QuoteAsset: "USDT", IsSpotTradingAllowed: true},
		{Symbol: "ETHBTC", Status: "TRADING", BaseAsset: "ETH", QuoteAsset: "BTC", IsSpotTradingAllowed: true},
		{Symbol: "SOLUSDT", Status: "BREAK", BaseAsset: "SOL", QuoteAsset: "USDT", IsSpotTradingAllowed: true},
		{Symbol: "ADAUSDT", Status: "TRADING", BaseAsset: "ADA", QuoteAsset: "USDT", IsSpotTradingAllowed: false},
		{Symbol: "BTCUPUSDT", Status: "TRADING", BaseAsset: "BTCUP", QuoteAsset: "USDT", IsSpotTradingAllowed: true},
	}
	got := filterSpotUniverse(raw)
	if len(got) != 1 || got[0] != "BTC/USDT" {
		t.Fatalf("filterSpotUniverse = %v, want [BTC/USDT]", got)
	}
}

func TestIsLeveragedTokenMatchesKnownMarkers(t *testing.T) {
	cases := map[string]bool{
		"BTCUP/USDT":   true,
		"BTCDOWN/USDT": true,
		"BTCBULL/USDT": true,
		"BTCBEAR/USDT": true,
		"BTC/USDT":     false,
		"SOL/USDT":     false,
	}
	for pair, want := range cases {
		if got := isLeveragedToken(pair); got != want {
			t.Fatalf("isLeveragedToken(%q) = %v, want %v", pair, got, want)
		}
	}
}

func TestWireSymbolStripsSlash(t *testing.T) {
	if got := wireSymbol("BTC/USDT"); got != "BTCUSDT" {
		t.Fatalf("wireSymbol = %q, want BTCUSDT", got)
	}
}

func TestExchangeSymbolRestoresUSDTSlash(t *testing.T) {
	if got := exchangeSymbol("BTCUSDT"); got != "BTC/USDT" {
		t.Fatalf("exchangeSymbol = %q, want BTC/USDT", got)
	}
}

func TestExchangeSymbolPassesThroughNonUSDT(t *testing.T) {
	if got := exchangeSymbol("ETHBTC"); got != "ETHBTC" {
		t.Fatalf("exchangeSymbol = %q, want unchanged ETHBTC", got)
	}
}

func TestDecodeKlineParsesRawRow(t *testing.T) {
	row := []interface{}{
		float64(1700000000000), "100.5", "105.0", "99.0", "102.0", "50.0",
		float64(1700000060000), "5100.0", float64(42),
	}
	k, err := decodeKline(row)
	if err != nil {
		t.Fatalf("decodeKline returned error: %v", err)
	}
	if k.OpenTime != 1700000000000 || k.Open != 100.5 || k.High != 105.0 || k.Low != 99.0 ||
		k.Close != 102.0 || k.Volume != 50.0 || k.QuoteAssetVolume != 5100.0 || k.NumberOfTrades != 42 {
		t.Fatalf("decodeKline = %+v, unexpected values", k)
	}
}

func TestDecodeKlineRejectsShortRow(t *testing.T) {
	if _, err := decodeKline([]interface{}{1.0, 2.0}); err == nil {
		t.Fatal("expected an error for a malformed short kline row")
	}
}

func TestToFloatParsesStringAndFloat(t *testing.T) {
	if got := toFloat("1.5"); got != 1.5 {
		t.Fatalf("toFloat(string) = %v, want 1.5", got)
	}
	if got := toFloat(2.25); got != 2.25 {
		t.Fatalf("toFloat(float64) = %v, want 2.25", got)
	}
	if got := toFloat(nil); got != 0 {
		t.Fatalf("toFloat(nil) = %v, want 0", got)
	}
	if got := toFloat("not-a-number"); got != 0 {
		t.Fatalf("toFloat(invalid string) = %v, want 0", got)
	}
}
