package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	bus.Publish(Event{Type: TypeReading, Data: 1.234})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case evt := <-ch:
			if evt.Type != TypeReading {
				t.Errorf("subscriber %s: Type = %q, want %q", name, evt.Type, TypeReading)
			}
			if evt.At.IsZero() {
				t.Errorf("subscriber %s: At not stamped", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: no event", name)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Type: TypeStability})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := bus.Dropped(); got != 9 {
		t.Errorf("Dropped() = %d, want 9", got)
	}
	// The first event is still there.
	select {
	case <-ch:
	default:
		t.Error("buffered event missing")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	// Channel is closed; publishing must not panic.
	bus.Publish(Event{Type: TypeConnection})
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}
