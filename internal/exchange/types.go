// Package exchange implements the rate-limited, cache-backed market-data
// client the rest of the core depends on: a credential-free PublicClient
// for symbols/candles/tickers, and an AuthClient that resolves the
// exchange API credentials (it has no balance or order call). Grounded on the teacher's internal/binance/client.go HTTP
// polling shape, generalized from the futures trading endpoints it called
// to the spot market-data endpoints this module needs.
package exchange

import (
	"time"

	"binance-trading-bot/internal/marketcache"
)

// Candle is one OHLCV bar for a symbol at a given timeframe.
type Candle struct {
	Time         time.Time
	Symbol       string
	Timeframe    string
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	QuoteVolume  float64
	Trades       int
}

// Ticker24h is one symbol's 24h rolling stats from the batch ticker
// endpoint. Aliased to marketcache.Ticker24h so values can pass through
// the cache without conversion.
type Ticker24h = marketcache.Ticker24h

// SymbolInfo is the exchange's metadata for one trading pair.
type SymbolInfo struct {
	Symbol     string // "BASE/QUOTE" form, e.g. "BTC/USDT"
	BaseAsset  string
	QuoteAsset string
	Status     string
	IsSpot     bool
}

// rawKline holds one decoded candlestick. The exchange sends each kline as
// a positional JSON array, so decodeKline fills this struct field by field
// from that array; the struct tags below are not used for that decoding.
type rawKline struct {
	OpenTime         int64   `json:"openTime"`
	Open             float64 `json:"open,string"`
	High             float64 `json:"high,string"`
	Low              float64 `json:"low,string"`
	Close            float64 `json:"close,string"`
	Volume           float64 `json:"volume,string"`
	QuoteAssetVolume float64 `json:"quoteAssetVolume,string"`
	NumberOfTrades   int     `json:"numberOfTrades"`
}

type rawTicker24hr struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
}

type rawSymbolInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

type rawExchangeInfo struct {
	Symbols []rawSymbolInfo `json:"symbols"`
}

type rawPriceTicker struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,string"`
}
