package notify

import (
	"sync"

	"github.com/nhle/workboard/internal/model"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing notifications; the
// persistent record in the store is the source of truth.
const subscriberBuffer = 16

// Hub fans live notifications out to in-process subscribers, keyed by
// recipient user ID. The websocket stream endpoint subscribes here.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Notification]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan model.Notification]struct{})}
}

// Subscribe registers a listener for a user's notifications. The
// returned cancel func must be called to release the subscription;
// it closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan model.Notification, func()) {
	ch := make(chan model.Notification, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan model.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[userID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers a notification to every live subscriber of its
// recipient without blocking; slow subscribers drop.
func (h *Hub) Publish(n model.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[n.RecipientID] {
		select {
		case ch <- n:
		default:
		}
	}
}
