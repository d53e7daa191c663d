// Package events implements the single-process publish/subscribe hub
// (C13): at-least-once, per-publisher-FIFO delivery to bounded
// per-subscriber queues, dropping the oldest entry on overflow.
package events

import (
	"sync"
	"time"
)

// Type is the closed vocabulary of event kinds (§4.10).
type Type string

const (
	TypeOrderAssigned       Type = "order-assigned"
	TypeOrderUnassigned     Type = "order-unassigned"
	TypeDeliveryComplete    Type = "delivery-complete"
	TypeStateChanged        Type = "state-changed"
	TypeSLABreachImminent   Type = "sla-breach-imminent"
	TypeSLABreachConfirmed  Type = "sla-breach-confirmed"
	TypeBreakerOpened       Type = "breaker_opened"
	TypeBreakerRecovered    Type = "breaker_recovered"
	TypeEngineDegraded      Type = "engine_degraded"
	TypeEngineHealthy       Type = "engine_healthy"
	TypeSubscriberLag       Type = "subscriber_lag"
)

// Event is one published fact.
type Event struct {
	Type      Type
	Payload   any
	Timestamp time.Time
}

// DefaultQueueSize is the per-subscriber bounded queue depth of §4.10.
const DefaultQueueSize = 1024

// subscriber is one registered listener's bounded, drop-oldest queue.
type subscriber struct {
	mu     sync.Mutex
	buf    []Event
	cap    int
	notify chan struct{}
}

func newSubscriber(capacity int) *subscriber {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &subscriber{cap: capacity, notify: make(chan struct{}, 1)}
}

// push appends e, dropping the oldest entry and returning true if the
// queue was already full (the caller uses this to emit subscriber_lag).
func (s *subscriber) push(e Event) bool {
	s.mu.Lock()
	overflowed := false
	if len(s.buf) >= s.cap {
		s.buf = s.buf[1:]
		overflowed = true
	}
	s.buf = append(s.buf, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return overflowed
}

// drain removes and returns every event currently queued.
func (s *subscriber) drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	return out
}

// Hub is the process-wide publish/subscribe broker. Publishing is
// synchronous within the publisher's own goroutine — Publish returns
// only after every subscriber's queue has been updated, matching §4.10
// and §5's "synchronous within the publisher's scheduling unit, ordering
// preserved per-publisher".
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers a named subscriber with a bounded queue and
// returns a Subscription the caller drains from. A duplicate name
// replaces the prior subscriber's queue.
func (h *Hub) Subscribe(name string, queueSize int) *Subscription {
	s := newSubscriber(queueSize)

	h.mu.Lock()
	h.subscribers[name] = s
	h.mu.Unlock()

	return &Subscription{name: name, sub: s, hub: h}
}

// Unsubscribe removes a named subscriber.
func (h *Hub) Unsubscribe(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, name)
}

// Publish delivers e to every current subscriber's queue, in the
// subscriber-map's iteration order for this call (unspecified across
// publishers, per §5). An overflowed subscriber's lag is reported by
// synthesizing a subscriber_lag event addressed only to that
// subscriber, so a single slow consumer never affects the others.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.mu.RLock()
	targets := make(map[string]*subscriber, len(h.subscribers))
	for name, s := range h.subscribers {
		targets[name] = s
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if s.push(e) {
			s.push(Event{Type: TypeSubscriberLag, Payload: e.Type, Timestamp: e.Timestamp})
		}
	}
}

// Subscription is a handle a caller reads events from.
type Subscription struct {
	name string
	sub  *subscriber
	hub  *Hub
}

// Drain returns every event queued since the last Drain call, oldest
// first. It never blocks.
func (s *Subscription) Drain() []Event {
	return s.sub.drain()
}

// Notify returns the channel that receives a signal whenever new events
// land, for callers that want to block until there is something to
// drain rather than poll.
func (s *Subscription) Notify() <-chan struct{} {
	return s.sub.notify
}

// Close removes this subscription from the hub.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s.name)
}
