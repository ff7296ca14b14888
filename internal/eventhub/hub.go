package eventhub

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 10000

// Envelope is what a subscriber actually receives: the event, plus how
// many prior events it missed because its channel was full.
type Envelope struct {
	Event    StreamEvent
	LaggedBy int
}

// Hub is the process-wide broadcast channel. Publish
// serializes into a single critical section over the subscriber list;
// each subscriber owns an independent buffered channel ("cursor") and a
// lossy-follow policy: a full channel causes the event to be dropped for
// that subscriber rather than blocking the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
}

// New constructs a Hub with the given per-subscriber buffer size,
// defaulting to DefaultBufferSize.
func New(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscription is one consumer's view of the hub. Publish applies
// Subscription.Filter before delivery, so the channel returned by Events
// only carries matching events.
type Subscription struct {
	hub     *Hub
	ch      chan Envelope
	dropped int32 // atomic count of events dropped since the last successful delivery
	Filter  Filter
	once    sync.Once
}

// Subscribe attaches a new subscriber with the given filter. The caller
// must call Unsubscribe when done.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		hub:    h,
		ch:     make(chan Envelope, h.bufferSize),
		Filter: filter,
	}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe detaches sub from the hub. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subscribers, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Events returns the subscriber's channel. Consumers should check
// Envelope.LaggedBy on every receive.
func (s *Subscription) Events() <-chan Envelope {
	return s.ch
}

// Publish fans evt out to every current subscriber. Subscribers whose
// filter doesn't match are skipped without affecting their lag count
// (the hub only counts drops caused by a full channel, i.e. genuine
// back-pressure).
func (h *Hub) Publish(evt StreamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		if !sub.Filter.Matches(evt) {
			continue
		}
		lagged := atomic.SwapInt32(&sub.dropped, 0)
		select {
		case sub.ch <- Envelope{Event: evt, LaggedBy: int(lagged)}:
		default:
			atomic.AddInt32(&sub.dropped, lagged+1)
		}
	}
}

// SubscriberCount reports the number of live subscriptions (diagnostics).
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
