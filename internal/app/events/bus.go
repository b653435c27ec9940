// Package events fans bridge notifications out to in-process subscribers and
// optional external publishers. Delivery is best-effort: a slow watcher never
// blocks or fails a coordinator state transition.
package events

import (
	"sync"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/domain/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/pkg/logger"
)

// Bus distributes events to subscribers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan bridge.Event
	nextSub uint64
	log     *logger.Logger
}

// NewBus creates an event bus.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Bus{
		subs: make(map[uint64]chan bridge.Event),
		log:  log,
	}
}

// Publish delivers the event to every subscriber without blocking. Events for
// subscribers with full buffers are dropped and logged; the persisted audit
// trail remains the source of truth.
func (b *Bus) Publish(ev bridge.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.WithField("subscriber", id).
				WithField("event_type", string(ev.Type)).
				Warn("subscriber buffer full, event dropped")
		}
	}
}

// Subscribe registers a new subscriber and returns its channel along with a
// cancel function. The channel is closed on cancel.
func (b *Bus) Subscribe(buffer int) (<-chan bridge.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan bridge.Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// SubscriberCount reports the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
