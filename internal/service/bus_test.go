package service

import (
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventTypeEstimateSaved)

	bus.Publish(Event{
		Type:   EventTypeEstimateSaved,
		Source: "analyzer",
		Data:   map[string]interface{}{"id": "rec-1"},
	})

	select {
	case ev := <-ch:
		if ev.Source != "analyzer" {
			t.Errorf("Source = %s, want analyzer", ev.Source)
		}
		if ev.Data["id"] != "rec-1" {
			t.Errorf("Data = %v", ev.Data)
		}
		if ev.Timestamp.IsZero() {
			t.Error("Expected timestamp to be backfilled")
		}
	case <-time.After(time.Second):
		t.Fatal("Event not delivered")
	}
}

func TestEventBus_TypeIsolation(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	saved := bus.Subscribe(EventTypeEstimateSaved)
	bus.Publish(Event{Type: EventTypeQuotaExceeded, Source: "analyzer"})

	select {
	case ev := <-saved:
		t.Errorf("Received event of wrong type: %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_FullSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(EventTypeCaptureTriggered)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Second publish hits a full buffer and must be dropped, not
		// block.
		bus.Publish(Event{Type: EventTypeCaptureTriggered})
		bus.Publish(Event{Type: EventTypeCaptureTriggered})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if len(ch) != 1 {
		t.Errorf("Expected exactly 1 buffered event, got %d", len(ch))
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventTypeEstimateStale)
	bus.Unsubscribe(EventTypeEstimateStale, ch)

	if _, open := <-ch; open {
		t.Error("Expected channel to be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(Event{Type: EventTypeEstimateStale})
}
