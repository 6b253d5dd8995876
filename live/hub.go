// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/models"
)

// Publisher delivers a tally update to an election's observers
type Publisher interface {
	Publish(ctx context.Context, update models.TallyUpdate) error
}

// DefaultBuffer is the number of updates a subscriber may fall behind
// before it is dropped
const DefaultBuffer = 32

// Subscription is one observer of one election's channel. C is closed when
// the subscription ends, either through Close or because the observer fell
// too far behind.
type Subscription struct {
	ElectionID string
	C          <-chan models.TallyUpdate

	ch  chan models.TallyUpdate
	hub *Hub
}

// Close leaves the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Hub keeps the subscriber set of every election channel. Nothing is
// persisted or replayed: a new subscriber only sees updates published after
// it joined.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	metrics *metrics.Metrics
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		subs:    make(map[string]map[*Subscription]struct{}),
		buffer:  DefaultBuffer,
		metrics: m,
	}
}

func (h *Hub) Subscribe(electionID string) *Subscription {
	ch := make(chan models.TallyUpdate, h.buffer)
	sub := &Subscription{ElectionID: electionID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	set := h.subs[electionID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[electionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	h.metrics.SubscriberJoined()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	removed := h.remove(sub)
	h.mu.Unlock()

	if removed {
		h.metrics.SubscriberLeft()
	}
}

// remove must be called with h.mu held. The channel is closed only by the
// call that takes the subscription out of the set.
func (h *Hub) remove(sub *Subscription) bool {
	set := h.subs[sub.ElectionID]
	if _, ok := set[sub]; !ok {
		return false
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, sub.ElectionID)
	}
	return true
}

// Publish hands the update to every subscriber of its election without
// blocking. Subscribers whose buffer is full are dropped.
func (h *Hub) Publish(_ context.Context, update models.TallyUpdate) error {
	var dropped int

	h.mu.Lock()
	for sub := range h.subs[update.ElectionID] {
		select {
		case sub.ch <- update:
		default:
			h.remove(sub)
			dropped++
		}
	}
	h.mu.Unlock()

	for i := 0; i < dropped; i++ {
		h.metrics.SubscriberLeft()
	}
	if dropped > 0 {
		slog.Warn("dropped slow live subscribers", "election_id", update.ElectionID, "count", dropped)
	}
	return nil
}

// Subscribers returns the number of observers of an election
func (h *Hub) Subscribers(electionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[electionID])
}

// Close ends every subscription
func (h *Hub) Close() {
	var n int

	h.mu.Lock()
	for _, set := range h.subs {
		for sub := range set {
			if h.remove(sub) {
				n++
			}
		}
	}
	h.mu.Unlock()

	for i := 0; i < n; i++ {
		h.metrics.SubscriberLeft()
	}
}
