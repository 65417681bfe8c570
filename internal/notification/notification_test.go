package notification

import (
	"errors"
	"testing"
)

type fakeNotifier struct {
	name    string
	enabled bool
	sent    []*Notification
	err     error
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) IsEnabled() bool { return f.enabled }
func (f *fakeNotifier) Send(n *Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func TestSendSkipsDisabledNotifiers(t *testing.T) {
	m := NewManager()
	enabled := &fakeNotifier{name: "a", enabled: true}
	disabled := &fakeNotifier{name: "b", enabled: false}
	m.AddNotifier(enabled)
	m.AddNotifier(disabled)

	if err := m.SendError("title", "message"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(enabled.sent) != 1 {
		t.Fatalf("enabled notifier received %d sends, want 1", len(enabled.sent))
	}
	if len(disabled.sent) != 0 {
		t.Fatalf("disabled notifier received %d sends, want 0", len(disabled.sent))
	}
}

func TestSendReturnsLastErrorButStillDeliversToOthers(t *testing.T) {
	m := NewManager()
	failing := &fakeNotifier{name: "fail", enabled: true, err: errors.New("transport down")}
	ok := &fakeNotifier{name: "ok", enabled: true}
	m.AddNotifier(failing)
	m.AddNotifier(ok)

	err := m.SendError("title", "message")
	if err == nil {
		t.Fatal("expected the failing transport's error to propagate")
	}
	if len(ok.sent) != 1 {
		t.Fatal("a failing transport should not block delivery to the next one")
	}
}

func TestSetEnabledSuppressesAllDelivery(t *testing.T) {
	m := NewManager()
	notifier := &fakeNotifier{name: "a", enabled: true}
	m.AddNotifier(notifier)
	m.SetEnabled(false)

	if err := m.SendError("title", "message"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("disabling the manager should suppress delivery entirely")
	}
}

func TestSendPositionCloseFormatsSymbolAndReason(t *testing.T) {
	m := NewManager()
	notifier := &fakeNotifier{name: "a", enabled: true}
	m.AddNotifier(notifier)

	if err := m.SendPositionClose("1", "SOL/USDT", 100, 110, 10, 10, "take_profit_1"); err != nil {
		t.Fatalf("SendPositionClose returned error: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(notifier.sent))
	}
	n := notifier.sent[0]
	if n.Type != NotifyPositionClose || n.Symbol != "SOL/USDT" || n.Extra["reason"] != "take_profit_1" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}
