package notifygate

import (
	"testing"
	"time"

	"binance-trading-bot/internal/store"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("loading location %q: %v", name, err)
	}
	return loc
}

func TestQuietHoursWrapAroundMidnight(t *testing.T) {
	loc := mustLoc(t, "UTC")
	settings := &store.NotificationSettings{
		Timezone: "UTC", QuietHourStart: 23, QuietHourEnd: 7,
		DailyLimit: 50, MinIntervalMinutes: 0,
	}

	cases := []struct {
		hour    int
		allowed bool
	}{
		{22, true},
		{23, false},
		{0, false},
		{6, false},
		{7, true},
		{12, true},
	}

	for _, c := range cases {
		now := time.Date(2026, 7, 31, c.hour, 0, 0, 0, loc)
		decision, err := evaluate(settings, now)
		if err != nil {
			t.Fatalf("hour %d: %v", c.hour, err)
		}
		if decision.Allowed != c.allowed {
			t.Errorf("hour %d: allowed = %v, want %v (reason=%q)", c.hour, decision.Allowed, c.allowed, decision.Reason)
		}
	}
}

func TestDailyLimitResetsOnNewDay(t *testing.T) {
	loc := mustLoc(t, "UTC")
	prevDay := time.Date(2026, 7, 30, 10, 0, 0, 0, loc)
	settings := &store.NotificationSettings{
		Timezone: "UTC", QuietHourStart: 0, QuietHourEnd: 0,
		DailyLimit: 2, MinIntervalMinutes: 0,
		SentToday: 2, SentDay: &prevDay,
	}

	now := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)
	decision, err := evaluate(settings, now)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allowed after day rollover, got rejected (%s)", decision.Reason)
	}
}

func TestDailyLimitBlocksWithinSameDay(t *testing.T) {
	loc := mustLoc(t, "UTC")
	today := time.Date(2026, 7, 31, 9, 0, 0, 0, loc)
	settings := &store.NotificationSettings{
		Timezone: "UTC", QuietHourStart: 0, QuietHourEnd: 0,
		DailyLimit: 2, MinIntervalMinutes: 0,
		SentToday: 2, SentDay: &today,
	}

	now := time.Date(2026, 7, 31, 15, 0, 0, 0, loc)
	decision, err := evaluate(settings, now)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Allowed {
		t.Fatalf("expected rejection at the daily cap within the same day")
	}
	if decision.Reason != "daily limit reached" {
		t.Errorf("reason = %q, want %q", decision.Reason, "daily limit reached")
	}
}

func TestMinIntervalNotElapsed(t *testing.T) {
	loc := mustLoc(t, "UTC")
	last := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)
	settings := &store.NotificationSettings{
		Timezone: "UTC", QuietHourStart: 0, QuietHourEnd: 0,
		DailyLimit: 50, MinIntervalMinutes: 15,
		LastSentAt: &last,
	}

	now := last.Add(5 * time.Minute)
	decision, err := evaluate(settings, now)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Allowed {
		t.Fatalf("expected rejection 5 minutes after last send with a 15 minute minimum interval")
	}

	now = last.Add(16 * time.Minute)
	decision, err = evaluate(settings, now)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Fatalf("expected acceptance 16 minutes after last send, got rejected (%s)", decision.Reason)
	}
}

func TestOperatorTimezoneShiftsQuietHours(t *testing.T) {
	settings := &store.NotificationSettings{
		Timezone: "Asia/Shanghai", QuietHourStart: 23, QuietHourEnd: 7,
		DailyLimit: 50, MinIntervalMinutes: 0,
	}

	utcNow := time.Date(2026, 7, 31, 16, 30, 0, 0, time.UTC) // 00:30 in Shanghai (UTC+8)
	decision, err := evaluate(settings, utcNow)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Allowed {
		t.Fatalf("expected quiet hours to apply at 00:30 Shanghai time")
	}
}
