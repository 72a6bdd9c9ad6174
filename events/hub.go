// Package events fans out image changes to the owner's open subscriptions.
package events

import (
	"sync"
)

const (
	TypeCreated    = "image.created"
	TypeClassified = "image.classified"

	subscriberBuffer = 16
)

type Event struct {
	Type    string `json:"type"`
	ImageID string `json:"imageId"`
}

// Hub is an in-process publish/subscribe registry keyed by user id.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[chan Event]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint]map[chan Event]struct{})}
}

// Subscribe registers a listener for userID. The returned cancel func must be
// called once the listener is done; it closes the channel. After Close the
// channel comes back already closed.
func (h *Hub) Subscribe(userID uint) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		// Close may already have removed and closed it
		if _, ok := h.subs[userID][ch]; !ok {
			return
		}
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		close(ch)
	}

	return ch, cancel
}

// Close ends every subscription and turns later Publish calls into no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, userID)
	}
	h.closed = true
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (h *Hub) Publish(userID uint, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribers(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
