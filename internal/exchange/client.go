package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"binance-trading-bot/internal/apperr"
	"binance-trading-bot/internal/circuit"
	"binance-trading-bot/internal/marketcache"
	"binance-trading-bot/internal/ratelimit"
)

// leveragedTokenMarkers excludes leveraged-token tickers from the spot
// universe (spec.md §4.1).
var leveragedTokenMarkers = []string{"UP/", "DOWN/", "BEAR/", "BULL/"}

// stablecoins is the fixed stablecoin-vs-USDT exclusion list subtracted
// from the spot universe to produce the altcoin universe.
var stablecoins = map[string]bool{
	"USDC/USDT": true,
	"FDUSD/USDT": true,
	"TUSD/USDT": true,
	"DAI/USDT":  true,
	"USDP/USDT": true,
}

// PublicClient is the credential-free market-data channel: symbol listing,
// candles, and tickers. It never retries across a TRANSIENT failure — the
// collector and screener decide what to do next (spec.md §4.1).
type PublicClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *circuit.Breaker
	cache      *marketcache.Cache
}

// NewPublicClient builds a PublicClient.
func NewPublicClient(baseURL string, requestTimeout time.Duration, limiter *ratelimit.Limiter, breaker *circuit.Breaker, cache *marketcache.Cache) *PublicClient {
	return &PublicClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    limiter,
		breaker:    breaker,
		cache:      cache,
	}
}

// FetchSymbols returns the filtered USDT spot universe, using the cached
// list when fresh. On a fresh fetch failure it falls back to a stale
// cached value if one exists, per spec.md §4.1.
func (c *PublicClient) FetchSymbols(ctx context.Context) ([]string, error) {
	if symbols, ok := c.cache.GetSymbols(); ok {
		return symbols, nil
	}

	raw, err := c.fetchExchangeInfo(ctx)
	if err != nil {
		if stale, ok := c.cache.GetStaleSymbols(); ok {
			return stale, nil
		}
		return nil, err
	}

	symbols := filterSpotUniverse(raw)
	c.cache.SetSymbols(ctx, symbols)
	return symbols, nil
}

// FetchAltcoins returns FetchSymbols minus BTC/USDT, ETH/USDT, and the
// fixed stablecoin list — the "altcoin universe" spec.md's glossary
// defines.
func (c *PublicClient) FetchAltcoins(ctx context.Context) ([]string, error) {
	symbols, err := c.FetchSymbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "BTC/USDT" || s == "ETH/USDT" || stablecoins[s] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *PublicClient) fetchExchangeInfo(ctx context.Context) ([]rawSymbolInfo, error) {
	var info rawExchangeInfo
	if err := c.get(ctx, "exchangeInfo", "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}
	return info.Symbols, nil
}

func filterSpotUniverse(raw []rawSymbolInfo) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s.QuoteAsset != "USDT" {
			continue
		}
		if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		pair := s.BaseAsset + "/" + s.QuoteAsset
		if isLeveragedToken(pair) {
			continue
		}
		out = append(out, pair)
	}
	return out
}

func isLeveragedToken(pair string) bool {
	for _, marker := range leveragedTokenMarkers {
		if strings.Contains(pair, marker) {
			return true
		}
	}
	return false
}

// FetchOHLCV fetches up to limit candles for symbol at timeframe, starting
// at (or after) since.
func (c *PublicClient) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", wireSymbol(symbol))
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))
	if !since.IsZero() {
		params.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
	}

	var raw [][]interface{}
	if err := c.get(ctx, "klines", "/api/v3/klines", params, &raw); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		k, err := decodeKline(row)
		if err != nil {
			continue
		}
		candles = append(candles, Candle{
			Time:        time.UnixMilli(k.OpenTime),
			Symbol:      symbol,
			Timeframe:   timeframe,
			Open:        k.Open,
			High:        k.High,
			Low:         k.Low,
			Close:       k.Close,
			Volume:      k.Volume,
			QuoteVolume: k.QuoteAssetVolume,
			Trades:      k.NumberOfTrades,
		})
	}
	return candles, nil
}

func decodeKline(row []interface{}) (rawKline, error) {
	if len(row) < 9 {
		return rawKline{}, fmt.Errorf("malformed kline row")
	}
	return rawKline{
		OpenTime:         int64(toFloat(row[0])),
		Open:             toFloat(row[1]),
		High:             toFloat(row[2]),
		Low:              toFloat(row[3]),
		Close:            toFloat(row[4]),
		Volume:           toFloat(row[5]),
		QuoteAssetVolume: toFloat(row[7]),
		NumberOfTrades:   int(toFloat(row[8])),
	}, nil
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

// FetchTickers returns the 24h ticker snapshot for every symbol, using the
// cached batch snapshot when fresh.
func (c *PublicClient) FetchTickers(ctx context.Context) (map[string]Ticker24h, error) {
	if tickers, ok := c.cache.GetTickers(); ok {
		return tickers, nil
	}

	var raw []rawTicker24hr
	if err := c.get(ctx, "ticker/24hr", "/api/v3/ticker/24hr", nil, &raw); err != nil {
		return nil, err
	}

	out := make(map[string]Ticker24h, len(raw))
	for _, t := range raw {
		sym := exchangeSymbol(t.Symbol)
		out[sym] = Ticker24h{Symbol: sym, LastPrice: t.LastPrice, QuoteVolume: t.QuoteVolume, PriceChgPct: t.PriceChangePercent}
	}
	c.cache.SetTickers(ctx, out)
	return out, nil
}

// FetchOverview returns the BTC/USDT and ETH/USDT last prices used as the
// beta-score reference, using the cached overview when fresh and falling
// back to a stale cache entry on fetch failure.
func (c *PublicClient) FetchOverview(ctx context.Context) (marketcache.Overview, error) {
	if ov, ok := c.cache.GetOverview(); ok {
		return ov, nil
	}

	btc, err := c.fetchPrice(ctx, "BTC/USDT")
	if err != nil {
		if stale, ok := c.cache.GetStaleOverview(); ok {
			return stale, nil
		}
		return marketcache.Overview{}, err
	}
	eth, err := c.fetchPrice(ctx, "ETH/USDT")
	if err != nil {
		if stale, ok := c.cache.GetStaleOverview(); ok {
			return stale, nil
		}
		return marketcache.Overview{}, err
	}

	ov := marketcache.Overview{BTCPrice: btc, ETHPrice: eth}
	c.cache.SetOverview(ctx, ov)
	return ov, nil
}

func (c *PublicClient) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", wireSymbol(symbol))

	var resp rawPriceTicker
	if err := c.get(ctx, "ticker/price", "/api/v3/ticker/price", params, &resp); err != nil {
		return 0, err
	}
	return resp.Price, nil
}

// get issues a rate-limited, circuit-breaker-gated GET and decodes the JSON
// body into out. Rate-limit and 5xx responses are classified TRANSIENT;
// everything else is PERMANENT, per spec.md §4.1/§7.
func (c *PublicClient) get(ctx context.Context, weightKey, path string, params url.Values, out interface{}) error {
	if allowed, wait := c.breaker.Allow(); !allowed {
		return apperr.Wrap(apperr.KindTransientFetch, nil, "circuit open, retry after %s", wait)
	}

	c.limiter.Wait(weightKey)

	endpoint := c.baseURL + path
	if params != nil {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "building request for %s", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordTransientFailure()
		return apperr.Wrap(apperr.KindTransientFetch, err, "fetching %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindTransientFetch, err, "reading response for %s", path)
	}

	const statusIPBanned = 418 // exchange-specific IP-ban status for repeated rate-limit violations
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == statusIPBanned || resp.StatusCode >= 500 {
		c.breaker.RecordTransientFailure()
		return apperr.Wrap(apperr.KindTransientFetch, nil, "%s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.Wrap(apperr.KindValidation, nil, "%s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	c.breaker.RecordSuccess()

	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "decoding response for %s", path)
	}
	return nil
}

// wireSymbol converts "BASE/QUOTE" to the exchange's concatenated form,
// "BASEQUOTE".
func wireSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// exchangeSymbol is a best-effort inverse of wireSymbol for the common
// USDT-quoted case this module exclusively deals with.
func exchangeSymbol(wire string) string {
	if strings.HasSuffix(wire, "USDT") {
		return wire[:len(wire)-4] + "/USDT"
	}
	return wire
}
