package service

import (
	"sync"
	"time"
)

// EventType represents the type of an inter-service event.
type EventType string

const (
	// System events
	EventTypeServiceStarted EventType = "service.started"
	EventTypeServiceStopped EventType = "service.stopped"
	EventTypeServiceError   EventType = "service.error"

	// Camera feed events
	EventTypeFeedConnected    EventType = "feed.connected"
	EventTypeFeedDisconnected EventType = "feed.disconnected"

	// Capture and analysis events
	EventTypeCaptureTriggered EventType = "capture.triggered"
	EventTypeEstimateSaved    EventType = "analysis.estimate_saved"
	EventTypeEstimateStale    EventType = "analysis.estimate_stale"
	EventTypeQuotaExceeded    EventType = "analysis.quota_exceeded"
)

// Event is one message on the bus.
type Event struct {
	Type      EventType
	Source    string // service that emitted the event
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventBus provides inter-service communication via buffered channels.
// Delivery is best-effort: a subscriber with a full channel misses the
// event rather than blocking the publisher.
type EventBus struct {
	subscribers map[EventType][]chan Event
	bufferSize  int
	mu          sync.RWMutex
}

// NewEventBus creates a new event bus.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe subscribes to events of a specific type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// Publish publishes an event to all subscribers of its type.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range eb.subscribers[event.Type] {
		select {
		case sub <- event:
		default:
			// Channel full, skip
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
}

// Close closes all subscriptions.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for eventType, subs := range eb.subscribers {
		for _, sub := range subs {
			close(sub)
		}
		delete(eb.subscribers, eventType)
	}
}
