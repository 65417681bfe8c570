// Package circuit implements a circuit breaker over exchange-client fetch
// failures: enough consecutive TRANSIENT errors (rate-limit, 5xx, timeouts)
// trips the breaker open, forcing callers to back off before trying again.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // calls pass through
	StateOpen     BreakerState = "open"      // calls rejected until cooldown elapses
	StateHalfOpen BreakerState = "half_open" // next call is a trial probe
)

// Config holds circuit breaker thresholds.
type Config struct {
	Enabled            bool          // whether the breaker enforces anything at all
	MaxConsecutiveFail int           // consecutive TRANSIENT failures before tripping
	CooldownMin        time.Duration // minimum time caller must wait once open
	FailureWindow      time.Duration // window after which the failure streak resets
}

// DefaultConfig returns conservative defaults matching the ≥60s backoff the
// exchange client is required to honor on rate-limit responses.
func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		MaxConsecutiveFail: 3,
		CooldownMin:        60 * time.Second,
		FailureWindow:      5 * time.Minute,
	}
}

// Breaker tracks a consecutive-TRANSIENT-failure streak for a single
// exchange endpoint and decides when a caller must stop calling and sleep.
type Breaker struct {
	mu               sync.RWMutex
	config           *Config
	state            BreakerState
	consecutiveFails int
	lastFailureTime  time.Time
	lastTripTime     time.Time
	tripReason       string
	onTrip           func(reason string)
	onReset          func()
}

// New creates a circuit breaker. A nil config uses DefaultConfig.
func New(config *Config) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Breaker{config: config, state: StateClosed}
}

// OnTrip registers a callback invoked (in a new goroutine) whenever the
// breaker opens.
func (b *Breaker) OnTrip(handler func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// OnReset registers a callback invoked (in a new goroutine) whenever the
// breaker closes again after a successful probe.
func (b *Breaker) OnReset(handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReset = handler
}

// Allow reports whether the caller may attempt a fetch right now, and if
// not, how long it must still wait.
func (b *Breaker) Allow() (bool, time.Duration) {
	if !b.config.Enabled {
		return true, 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripTime)
		if elapsed < b.config.CooldownMin {
			return false, b.config.CooldownMin - elapsed
		}
		b.state = StateHalfOpen
	}

	return true, 0
}

// RecordSuccess clears the failure streak. A success while half-open closes
// the breaker.
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	wasHalfOpen := b.state == StateHalfOpen
	b.consecutiveFails = 0
	b.state = StateClosed
	b.tripReason = ""
	b.mu.Unlock()

	if wasHalfOpen && b.onReset != nil {
		go b.onReset()
	}
}

// RecordTransientFailure records one TRANSIENT fetch failure, tripping the
// breaker once the consecutive-failure threshold is crossed.
func (b *Breaker) RecordTransientFailure() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	now := time.Now()
	if !b.lastFailureTime.IsZero() && now.Sub(b.lastFailureTime) > b.config.FailureWindow {
		b.consecutiveFails = 0
	}
	b.lastFailureTime = now
	b.consecutiveFails++

	var reason string
	if b.consecutiveFails >= b.config.MaxConsecutiveFail {
		reason = fmt.Sprintf("%d consecutive transient failures", b.consecutiveFails)
		b.state = StateOpen
		b.lastTripTime = now
		b.tripReason = reason
	}
	onTrip := b.onTrip
	b.mu.Unlock()

	if reason != "" && onTrip != nil {
		go onTrip(reason)
	}
}

// ForceReset manually closes the breaker, discarding the failure streak.
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	b.state = StateClosed
	b.consecutiveFails = 0
	b.tripReason = ""
	b.mu.Unlock()
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats returns a snapshot of breaker counters, useful for status endpoints.
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]interface{}{
		"state":             string(b.state),
		"consecutive_fails": b.consecutiveFails,
		"trip_reason":       b.tripReason,
		"last_trip_time":    b.lastTripTime,
	}
}
