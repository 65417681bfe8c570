// Package notifygate decides whether an eligible screening hit is allowed
// to reach a notification transport right now: quiet hours, a daily cap,
// and a minimum interval between sends all gate the same decision.
// Grounded on the teacher's internal/notification package, which wraps a
// similar accept/reject chain around its Telegram/Discord senders; this
// version generalizes the chain to operate against the persisted
// notification_settings row instead of in-memory counters so the gate
// survives a process restart.
package notifygate

import (
	"context"
	"fmt"
	"time"

	"binance-trading-bot/internal/store"
)

// Decision is the gate's verdict on one candidate notification.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate evaluates notification_settings against the current time.
type Gate struct {
	repo *store.Repository
}

// New builds a Gate.
func New(repo *store.Repository) *Gate {
	return &Gate{repo: repo}
}

// Evaluate reports whether a notification may be sent at now, without
// mutating any counters — callers only advance state via Record after the
// transport confirms delivery.
func (g *Gate) Evaluate(ctx context.Context, now time.Time) (Decision, error) {
	settings, err := g.repo.GetNotificationSettings(ctx)
	if err != nil {
		return Decision{}, err
	}
	return evaluate(settings, now)
}

// Record advances the gate's counters after a transport has confirmed a
// successful send. Acceptance is non-idempotent: calling Record when no
// Evaluate preceded it (or calling it twice for one send) would
// over-count, so callers must only invoke it once per delivered
// notification.
func (g *Gate) Record(ctx context.Context, now time.Time) error {
	return g.repo.RecordNotificationSent(ctx, now)
}

func evaluate(s *store.NotificationSettings, now time.Time) (Decision, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return Decision{}, fmt.Errorf("loading notification timezone %q: %w", s.Timezone, err)
	}
	local := now.In(loc)

	if inQuietHours(local.Hour(), s.QuietHourStart, s.QuietHourEnd) {
		return Decision{Allowed: false, Reason: "quiet hours"}, nil
	}

	today := local.Truncate(24 * time.Hour)
	sentToday := s.SentToday
	if s.SentDay == nil || !sameDay(s.SentDay.In(loc), today, loc) {
		sentToday = 0
	}
	if sentToday >= s.DailyLimit {
		return Decision{Allowed: false, Reason: "daily limit reached"}, nil
	}

	if s.LastSentAt != nil {
		elapsed := now.Sub(*s.LastSentAt)
		minInterval := time.Duration(s.MinIntervalMinutes) * time.Minute
		if elapsed < minInterval {
			return Decision{Allowed: false, Reason: "minimum interval not elapsed"}, nil
		}
	}

	return Decision{Allowed: true, Reason: "allowed"}, nil
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// inQuietHours reports whether hour falls in [start, end), wrapping past
// midnight when start > end (e.g. 23 -> 7 covers 23, 0..6).
func inQuietHours(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
