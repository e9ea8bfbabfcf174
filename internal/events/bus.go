package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Type tags what an Event carries.
type Type string

const (
	// TypeReading carries a models.WeightSample.
	TypeReading Type = "reading"
	// TypeStability carries a models.StabilityState transition.
	TypeStability Type = "stability"
	// TypeConnection carries a models.Connection change.
	TypeConnection Type = "connection"
	// TypeUpload carries a models.UploadRecord lifecycle change.
	TypeUpload Type = "upload"
)

// Event is one broadcast item. Data is the payload named by Type.
type Event struct {
	Type Type      `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Bus fans events out to subscribers. Delivery is best effort: a subscriber
// that cannot keep up loses events rather than stalling the producer. The
// durable record of uploads lives in the repository, not here.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	dropped atomic.Int64
}

// NewBus returns an empty bus ready for subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscription and returns the receive channel
// plus a cancel func. Cancel closes the channel and is safe to call twice.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers evt to every subscriber without blocking. Full subscriber
// buffers drop the event for that subscriber only.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many per-subscriber deliveries were discarded.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
