// Package marketcache holds the three independently-TTL'd, read-mostly
// caches the exchange client serves from: the active symbol list, the
// aggregate 24h ticker snapshot, and the BTC/ETH price overview. Reads are
// lock-free via sync.Map; writes serialize under a single updater at a
// time, matching spec.md §9's "process-wide cache object with explicit
// get_or_refresh(ttl) operations" note.
package marketcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ticker24h is one symbol's 24h rolling stats, as returned by the batch
// ticker endpoint.
type Ticker24h struct {
	Symbol        string  `json:"symbol"`
	LastPrice     float64 `json:"last_price"`
	QuoteVolume   float64 `json:"quote_volume"`
	PriceChgPct   float64 `json:"price_change_pct"`
}

// Overview is the BTC/ETH reference snapshot the screener and monitor use
// for ratio/beta computations.
type Overview struct {
	BTCPrice float64 `json:"btc_price"`
	ETHPrice float64 `json:"eth_price"`
}

const (
	symbolsTTL  = 300 * time.Second
	tickersTTL  = 60 * time.Second
	overviewTTL = 30 * time.Second
)

type entry struct {
	value     interface{}
	updatedAt time.Time
}

func (e *entry) fresh(ttl time.Duration) bool {
	return e != nil && time.Since(e.updatedAt) < ttl
}

// Cache is the in-process market-data cache. When a Redis client is
// configured, every Set also writes the value to Redis; the Cache never
// reads values back from Redis, so each process serves only the entries
// it stored itself.
type Cache struct {
	symbols  sync.Map // "symbols" -> *entry{[]string}
	tickers  sync.Map // "tickers" -> *entry{map[string]Ticker24h}
	overview sync.Map // "overview" -> *entry{Overview}

	redis *redis.Client

	statsMu   sync.Mutex
	hitCount  int64
	missCount int64
}

// New creates a cache. A nil redis client disables mirroring.
func New(rdb *redis.Client) *Cache {
	return &Cache{redis: rdb}
}

// GetSymbols returns the cached symbol list if still fresh.
func (c *Cache) GetSymbols() ([]string, bool) {
	v, ok := loadFresh(&c.symbols, "symbols", symbolsTTL)
	c.record(ok)
	if !ok {
		return nil, false
	}
	return v.([]string), true
}

// SetSymbols stores the symbol list and mirrors it to Redis if configured.
func (c *Cache) SetSymbols(ctx context.Context, symbols []string) {
	c.symbols.Store("symbols", &entry{value: symbols, updatedAt: time.Now()})
	c.mirror(ctx, "marketcache:symbols", symbols)
}

// GetTickers returns the cached ticker snapshot if still fresh.
func (c *Cache) GetTickers() (map[string]Ticker24h, bool) {
	v, ok := loadFresh(&c.tickers, "tickers", tickersTTL)
	c.record(ok)
	if !ok {
		return nil, false
	}
	return v.(map[string]Ticker24h), true
}

// SetTickers stores the ticker snapshot and mirrors it to Redis.
func (c *Cache) SetTickers(ctx context.Context, tickers map[string]Ticker24h) {
	c.tickers.Store("tickers", &entry{value: tickers, updatedAt: time.Now()})
	c.mirror(ctx, "marketcache:tickers", tickers)
}

// GetOverview returns the cached BTC/ETH overview if still fresh.
func (c *Cache) GetOverview() (Overview, bool) {
	v, ok := loadFresh(&c.overview, "overview", overviewTTL)
	c.record(ok)
	if !ok {
		return Overview{}, false
	}
	return v.(Overview), true
}

// SetOverview stores the BTC/ETH overview and mirrors it to Redis.
func (c *Cache) SetOverview(ctx context.Context, ov Overview) {
	c.overview.Store("overview", &entry{value: ov, updatedAt: time.Now()})
	c.mirror(ctx, "marketcache:overview", ov)
}

// GetStaleSymbols returns the cached symbol list regardless of freshness,
// for use as a last resort when a fresh fetch failed (spec.md §4.1: "the
// last cached value is returned if present").
func (c *Cache) GetStaleSymbols() ([]string, bool) {
	v, ok := c.symbols.Load("symbols")
	if !ok {
		return nil, false
	}
	return v.(*entry).value.([]string), true
}

// GetStaleOverview returns the cached overview regardless of freshness.
func (c *Cache) GetStaleOverview() (Overview, bool) {
	v, ok := c.overview.Load("overview")
	if !ok {
		return Overview{}, false
	}
	return v.(*entry).value.(Overview), true
}

func loadFresh(m *sync.Map, key string, ttl time.Duration) (interface{}, bool) {
	v, ok := m.Load(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if !e.fresh(ttl) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) mirror(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, data, 0)
}

func (c *Cache) record(hit bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if hit {
		c.hitCount++
	} else {
		c.missCount++
	}
}

// Stats returns cache hit/miss counters.
func (c *Cache) Stats() (hits, misses int64, hitRate float64) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	hits, misses = c.hitCount, c.missCount
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return
}
