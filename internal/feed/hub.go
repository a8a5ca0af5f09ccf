// Package feed broadcasts journey changes to connected admin clients.
package feed

import (
	"log/slog"
	"sync"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/metrics"
)

// Event types.
const (
	EventCreated = "journey.created"
	EventUpdated = "journey.updated"
)

// Event is one journey change as sent to feed clients.
type Event struct {
	Type    string          `json:"type"`
	Journey *domain.Journey `json:"journey"`
}

type subscriber struct {
	ch      chan Event
	dropped int
}

// Hub fans events out to subscribers. Each subscriber has a bounded queue;
// events for a full queue are dropped rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	buffer  int
	metrics *metrics.Collector
	closed  bool
}

// NewHub creates a hub whose subscribers queue up to buffer events.
func NewHub(buffer int, m *metrics.Collector) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		subs:    make(map[*subscriber]struct{}),
		buffer:  buffer,
		metrics: m,
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.metrics.FeedClientDelta(1)
	slog.Info("Feed client subscribed", "clients", count)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { h.remove(sub) })
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	h.metrics.FeedClientDelta(-1)
	slog.Info("Feed client unsubscribed", "clients", len(h.subs), "dropped", sub.dropped)
}

// Publish sends e to every subscriber without blocking.
func (h *Hub) Publish(e Event) {
	if e.Journey != nil {
		e.Journey = e.Journey.Clone()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
			slog.Warn("Feed client queue full, dropping event", "type", e.Type, "dropped", sub.dropped)
		}
	}
}

// Journey publishes a created or updated event for j.
func (h *Hub) Journey(created bool, j *domain.Journey) {
	if h == nil {
		return
	}
	t := EventUpdated
	if created {
		t = EventCreated
	}
	h.Publish(Event{Type: t, Journey: j})
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes every subscriber. Later subscriptions receive a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
		h.metrics.FeedClientDelta(-1)
	}
}
