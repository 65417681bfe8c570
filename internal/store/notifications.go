package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetNotificationSettings retrieves the singleton notification-gate row,
// creating it with defaults on first use.
func (r *Repository) GetNotificationSettings(ctx context.Context) (*NotificationSettings, error) {
	query := `
		SELECT min_interval_minutes, daily_limit, min_score_threshold, notify_top_n,
			quiet_hour_start, quiet_hour_end, timezone, sent_today, sent_day, last_sent_at
		FROM notification_settings WHERE id = 1
	`
	s := &NotificationSettings{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&s.MinIntervalMinutes, &s.DailyLimit, &s.MinScoreThreshold, &s.NotifyTopN,
		&s.QuietHourStart, &s.QuietHourEnd, &s.Timezone, &s.SentToday, &s.SentDay, &s.LastSentAt,
	)
	if err == pgx.ErrNoRows {
		if err := r.createDefaultNotificationSettings(ctx); err != nil {
			return nil, err
		}
		return r.GetNotificationSettings(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) createDefaultNotificationSettings(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO notification_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	return err
}

// SeedNotificationSettings inserts the configured defaults on first boot
// only — it never overwrites a row an operator has since edited via the
// HTTP surface.
func (r *Repository) SeedNotificationSettings(ctx context.Context, s *NotificationSettings) error {
	query := `
		INSERT INTO notification_settings (id, min_interval_minutes, daily_limit, min_score_threshold, notify_top_n,
			quiet_hour_start, quiet_hour_end, timezone)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query,
		s.MinIntervalMinutes, s.DailyLimit, s.MinScoreThreshold, s.NotifyTopN, s.QuietHourStart, s.QuietHourEnd, s.Timezone)
	return err
}

// RecordNotificationSent advances the gate's counters after a transport
// successfully delivers a notification — acceptance is non-idempotent, so
// this must only be called once per accepted send.
func (r *Repository) RecordNotificationSent(ctx context.Context, now time.Time) error {
	query := `
		UPDATE notification_settings
		SET sent_today = CASE WHEN sent_day = $2 THEN sent_today + 1 ELSE 1 END,
		    sent_day = $2,
		    last_sent_at = $1,
		    updated_at = now()
		WHERE id = 1
	`
	_, err := r.db.Pool.Exec(ctx, query, now, now.Truncate(24*time.Hour))
	return err
}

// UpdateNotificationSettings persists the operator-configurable fields of
// the notification gate.
func (r *Repository) UpdateNotificationSettings(ctx context.Context, s *NotificationSettings) error {
	query := `
		UPDATE notification_settings
		SET min_interval_minutes = $1, daily_limit = $2, min_score_threshold = $3, notify_top_n = $4,
		    quiet_hour_start = $5, quiet_hour_end = $6, timezone = $7, updated_at = now()
		WHERE id = 1
	`
	_, err := r.db.Pool.Exec(ctx, query,
		s.MinIntervalMinutes, s.DailyLimit, s.MinScoreThreshold, s.NotifyTopN, s.QuietHourStart, s.QuietHourEnd, s.Timezone)
	return err
}

// CreateAutoTradeLog inserts one auto-trading decision record.
func (r *Repository) CreateAutoTradeLog(ctx context.Context, l *AutoTradeLog) error {
	query := `
		INSERT INTO autotrade_logs (account_id, symbol, decision, reason, total_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(ctx, query, l.AccountID, l.Symbol, l.Decision, l.Reason, l.TotalScore).Scan(&l.ID, &l.CreatedAt)
}

// ListRecentAutoTradeLogs retrieves the most recent auto-trading decisions
// across every account, most recent first.
func (r *Repository) ListRecentAutoTradeLogs(ctx context.Context, limit int) ([]*AutoTradeLog, error) {
	query := `
		SELECT id, account_id, symbol, decision, reason, total_score, created_at
		FROM autotrade_logs ORDER BY created_at DESC LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*AutoTradeLog
	for rows.Next() {
		l := &AutoTradeLog{}
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Symbol, &l.Decision, &l.Reason, &l.TotalScore, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetRecentAutoTradeLogs retrieves an account's recent auto-trading
// decisions, most recent first.
func (r *Repository) GetRecentAutoTradeLogs(ctx context.Context, accountID int64, limit int) ([]*AutoTradeLog, error) {
	query := `
		SELECT id, account_id, symbol, decision, reason, total_score, created_at
		FROM autotrade_logs WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*AutoTradeLog
	for rows.Next() {
		l := &AutoTradeLog{}
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Symbol, &l.Decision, &l.Reason, &l.TotalScore, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
