package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToTypeSubscriber(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var received Event
	done := make(chan struct{})

	bus.Subscribe(EventPositionOpened, func(e Event) {
		mu.Lock()
		received = e
		mu.Unlock()
		close(done)
	})

	bus.PublishPositionOpened("1", "BTC/USDT", 100, 0.5)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Type != EventPositionOpened {
		t.Fatalf("event type = %v, want %v", received.Type, EventPositionOpened)
	}
	if received.Data["symbol"] != "BTC/USDT" {
		t.Fatalf("event data[symbol] = %v, want BTC/USDT", received.Data["symbol"])
	}
	if received.Timestamp.IsZero() {
		t.Fatal("expected Publish to stamp a non-zero timestamp")
	}
}

func TestSubscribeAllReceivesEveryEventType(t *testing.T) {
	bus := NewBus()
	count := make(chan EventType, 2)

	bus.SubscribeAll(func(e Event) { count <- e.Type })

	bus.PublishScreeningComplete("5m", 3, 10)
	bus.PublishError("test", "boom", nil)

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case et := <-count:
			seen[et] = true
		case <-time.After(time.Second):
			t.Fatal("expected two events to reach the catch-all subscriber")
		}
	}
	if !seen[EventScreeningComplete] || !seen[EventError] {
		t.Fatalf("catch-all subscriber missed an event type, saw %v", seen)
	}
}

func TestUnsubscribedEventTypeDoesNotPanic(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventPositionClosed})
}
