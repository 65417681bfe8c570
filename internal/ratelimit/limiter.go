// Package ratelimit enforces a minimum inter-call spacing plus a
// weight-budget window over the exchange's spot market-data endpoints
// (klines, ticker/24hr, exchangeInfo), adapted from the teacher's futures
// order-endpoint rate limiter down to the handful of endpoints this module
// actually calls.
package ratelimit

import (
	"sync"
	"time"
)

// endpointWeights mirrors the exchange's documented weight costs for the
// spot market-data endpoints this module uses.
var endpointWeights = map[string]int{
	"klines":       2,
	"ticker/24hr":  2,
	"exchangeInfo": 10,
	"ticker/price": 2,
}

func weightOf(endpoint string) int {
	if w, ok := endpointWeights[endpoint]; ok {
		return w
	}
	return 1
}

// Limiter enforces a minimum spacing between calls and a rolling
// weight-budget window (default 1200/minute, conservative relative to the
// exchange's published 6000/minute spot limit).
type Limiter struct {
	mu sync.Mutex

	minSpacing time.Duration
	lastCall   time.Time

	maxWeight     int
	currentWeight int
	weightResetAt time.Time
}

// New creates a limiter with the given minimum inter-call spacing.
func New(minSpacing time.Duration) *Limiter {
	return &Limiter{
		minSpacing:    minSpacing,
		maxWeight:     1200,
		weightResetAt: time.Now().Add(time.Minute),
	}
}

// Wait blocks until the caller may issue the named endpoint call, honoring
// both the minimum spacing and the weight budget. It never itself retries
// after an exchange-reported rate limit — per spec.md §4.1 the client
// never retries across sleeps, callers decide.
func (l *Limiter) Wait(endpoint string) {
	l.mu.Lock()
	now := time.Now()

	if now.After(l.weightResetAt) {
		l.currentWeight = 0
		l.weightResetAt = now.Add(time.Minute)
	}

	wait := time.Duration(0)
	if elapsed := now.Sub(l.lastCall); elapsed < l.minSpacing {
		wait = l.minSpacing - elapsed
	}
	if l.currentWeight+weightOf(endpoint) > l.maxWeight {
		untilReset := l.weightResetAt.Sub(now)
		if untilReset > wait {
			wait = untilReset
		}
	}
	l.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	l.mu.Lock()
	l.lastCall = time.Now()
	l.currentWeight += weightOf(endpoint)
	l.mu.Unlock()
}

// Stats reports the current weight usage, for status endpoints.
func (l *Limiter) Stats() (currentWeight, maxWeight int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentWeight, l.maxWeight
}
