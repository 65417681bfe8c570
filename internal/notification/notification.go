// Package notification delivers screening and paper-trading outcomes to
// whatever transport is configured. Only a log-only transport ships here;
// an actual messaging bot (Telegram, Discord, SMTP) is an external
// collaborator wired in by an operator, not part of this repo.
package notification

import (
	"fmt"
	"time"

	"binance-trading-bot/internal/logging"
)

// Type identifies the kind of notification.
type Type string

const (
	NotifyTopOpportunity Type = "top_opportunity"
	NotifyPositionOpen   Type = "position_open"
	NotifyPositionClose  Type = "position_close"
	NotifyError          Type = "error"
	NotifyInfo           Type = "info"
)

// Notification is a single message destined for a notifier.
type Notification struct {
	Type       Type
	Title      string
	Message    string
	Symbol     string
	Price      float64
	PnL        float64
	PnLPercent float64
	Timestamp  time.Time
	Extra      map[string]interface{}
}

// Notifier delivers a notification through one transport.
type Notifier interface {
	Send(n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans a notification out to every registered, enabled notifier.
// Gating decisions (quiet hours, daily cap, minimum interval) happen
// upstream in internal/notifygate; by the time Send is called here the
// message has already been cleared to go out.
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates an empty notification manager.
func NewManager() *Manager {
	return &Manager{notifiers: make([]Notifier, 0), enabled: true}
}

// AddNotifier registers a notification transport.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetEnabled toggles delivery globally.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// Send delivers a notification to every enabled transport, returning the
// last error encountered (if any) so the caller can log it without losing
// deliveries that succeeded on other transports.
func (m *Manager) Send(n *Notification) error {
	if !m.enabled {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	var lastErr error
	for _, notifier := range m.notifiers {
		if notifier.IsEnabled() {
			if err := notifier.Send(n); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendTopOpportunity notifies about a screening candidate that cleared the
// opportunity threshold.
func (m *Manager) SendTopOpportunity(symbol string, totalScore float64, price float64, reason string) error {
	return m.Send(&Notification{
		Type:    NotifyTopOpportunity,
		Title:   fmt.Sprintf("Opportunity: %s", symbol),
		Message: fmt.Sprintf("%s scored %.1f @ %.8f\n%s", symbol, totalScore, price, reason),
		Symbol:  symbol,
		Price:   price,
		Extra:   map[string]interface{}{"total_score": totalScore, "reason": reason},
	})
}

// SendPositionOpen notifies that a simulated position was opened.
func (m *Manager) SendPositionOpen(accountID, symbol string, price, quantity float64) error {
	return m.Send(&Notification{
		Type:    NotifyPositionOpen,
		Title:   fmt.Sprintf("Position opened: %s", symbol),
		Message: fmt.Sprintf("account %s opened %s @ %.8f qty %.8f", accountID, symbol, price, quantity),
		Symbol:  symbol,
		Price:   price,
	})
}

// SendPositionClose notifies that a simulated position was closed, in full
// or via a partial take-profit fill.
func (m *Manager) SendPositionClose(accountID, symbol string, entryPrice, exitPrice, pnl, pnlPercent float64, reason string) error {
	return m.Send(&Notification{
		Type:       NotifyPositionClose,
		Title:      fmt.Sprintf("Position closed: %s", symbol),
		Message:    fmt.Sprintf("account %s: entry %.8f -> exit %.8f, pnl %.8f (%.2f%%), reason %s", accountID, entryPrice, exitPrice, pnl, pnlPercent, reason),
		Symbol:     symbol,
		Price:      exitPrice,
		PnL:        pnl,
		PnLPercent: pnlPercent,
		Extra:      map[string]interface{}{"reason": reason},
	})
}

// SendError notifies that a component encountered an error worth a human's
// attention.
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{Type: NotifyError, Title: title, Message: message})
}

// LogNotifier writes notifications through the structured logger. It is the
// only transport this repo ships; it always reports enabled so operators
// running without a messaging bot still see opportunities and trade events
// in their logs.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger.WithComponent("notification")}
}

func (l *LogNotifier) Name() string     { return "log" }
func (l *LogNotifier) IsEnabled() bool  { return true }
func (l *LogNotifier) Send(n *Notification) error {
	l.logger.WithFields(map[string]interface{}{
		"type":    string(n.Type),
		"symbol":  n.Symbol,
		"price":   n.Price,
		"pnl":     n.PnL,
		"pnl_pct": n.PnLPercent,
	}).Info(n.Title + ": " + n.Message)
	return nil
}
