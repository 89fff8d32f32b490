package events

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

const subscriberBuffer = 64

// Relay forwards every published event to an external channel (redis);
// best-effort, must not block.
type Relay func(Event)

// Subscriber is one registered listener with a bounded delivery queue.
type Subscriber struct {
	id      uint64
	ch      chan Event
	dropped atomic.Uint64
}

// C is the subscriber's delivery channel.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Dropped reports how many events were discarded because the queue was full.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Hub fans lifecycle events out to registered subscribers. Publish never
// blocks: an event is dropped for any subscriber whose queue is full, so a
// slow listener cannot stall the scheduler.
type Hub struct {
	subscribers *xsync.Map[uint64, *Subscriber]
	nextID      atomic.Uint64
	relay       Relay
	logger      *zap.Logger
}

// NewHub creates a hub. relay may be nil.
func NewHub(logger *zap.Logger, relay Relay) *Hub {
	return &Hub{
		subscribers: xsync.NewMap[uint64, *Subscriber](),
		relay:       relay,
		logger:      logger,
	}
}

// Subscribe registers a listener. The caller must Unsubscribe when done.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: h.nextID.Add(1),
		ch: make(chan Event, subscriberBuffer),
	}
	h.subscribers.Store(sub.id, sub)
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if _, ok := h.subscribers.LoadAndDelete(sub.id); ok {
		close(sub.ch)
	}
}

// Publish delivers the event to every subscriber without blocking and relays
// it onward when a relay is configured.
func (h *Hub) Publish(ev Event) {
	h.subscribers.Range(func(id uint64, sub *Subscriber) bool {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			h.logger.Debug("Dropped event for slow subscriber",
				zap.Uint64("subscriber", id),
				zap.String("event", ev.Name))
		}
		return true
	})
	if h.relay != nil {
		h.relay(ev)
	}
}

// SubscriberCount returns the number of registered listeners.
func (h *Hub) SubscriberCount() int {
	return h.subscribers.Size()
}
