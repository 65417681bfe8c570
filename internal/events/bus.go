// Package events provides an in-process pub/sub bus used to hand screening
// results, paper-trade decisions, and notification outcomes from the
// monitor loop to whichever observers subscribe, without those observers
// importing the monitor directly. No subscriber is registered inside this
// module; the monitor writes the auto-trade decision log and calls the
// notification gate directly.
package events

import (
	"sync"
	"time"
)

// EventType identifies the kind of event carried on the bus.
type EventType string

const (
	EventScreeningComplete  EventType = "SCREENING_COMPLETE"
	EventPositionOpened     EventType = "POSITION_OPENED"
	EventPositionClosed     EventType = "POSITION_CLOSED"
	EventAutoEntrySkipped   EventType = "AUTO_ENTRY_SKIPPED"
	EventNotificationSent   EventType = "NOTIFICATION_SENT"
	EventNotificationGated  EventType = "NOTIFICATION_GATED"
	EventError              EventType = "ERROR"
)

// Event is a single occurrence published on the bus.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles a published event.
type Subscriber func(Event)

// Bus manages event publication and subscription.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event type.
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish delivers an event to matching subscribers, each in its own
// goroutine so a slow subscriber never blocks the monitor loop.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishPositionOpened publishes a position-opened event.
func (b *Bus) PublishPositionOpened(accountID, symbol string, entryPrice, quantity float64) {
	b.Publish(Event{
		Type: EventPositionOpened,
		Data: map[string]interface{}{
			"account_id":  accountID,
			"symbol":      symbol,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishPositionClosed publishes a position-closed event.
func (b *Bus) PublishPositionClosed(accountID, symbol string, entryPrice, exitPrice, quantity, pnl, pnlPercent float64, reason string) {
	b.Publish(Event{
		Type: EventPositionClosed,
		Data: map[string]interface{}{
			"account_id":  accountID,
			"symbol":      symbol,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"quantity":    quantity,
			"pnl":         pnl,
			"pnl_percent": pnlPercent,
			"reason":      reason,
		},
	})
}

// PublishAutoEntrySkipped publishes why a candidate symbol was not
// auto-entered despite passing the screen.
func (b *Bus) PublishAutoEntrySkipped(accountID, symbol, reason string) {
	b.Publish(Event{
		Type: EventAutoEntrySkipped,
		Data: map[string]interface{}{
			"account_id": accountID,
			"symbol":     symbol,
			"reason":     reason,
		},
	})
}

// PublishScreeningComplete publishes the outcome of one screener pass.
func (b *Bus) PublishScreeningComplete(timeframe string, candidateCount int, durationMs int64) {
	b.Publish(Event{
		Type: EventScreeningComplete,
		Data: map[string]interface{}{
			"timeframe":       timeframe,
			"candidate_count": candidateCount,
			"duration_ms":     durationMs,
		},
	})
}

// PublishError publishes an error surfaced by some component.
func (b *Bus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: EventError, Data: data})
}
