/*
Package notify fans out "something changed" signals to subscribers.

PURPOSE:
  The engines publish a bare signal after every state change; connected
  clients (websocket sessions) re-fetch whatever views they care about.
  No payload is carried, so there is nothing to get stale or out of
  order.

DELIVERY GUARANTEES:
  Fire and forget. Publish never blocks: a subscriber whose channel is
  full simply misses the signal, which is fine because the next
  re-fetch picks up all accumulated changes. A slow subscriber can
  never stall a money movement.
*/
package notify

import "sync"

// Hub is a fan-out broadcaster of change signals.
type Hub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers a new subscriber and returns its signal channel
// along with a cancel function. The cancel function must be called when
// the subscriber goes away.
func (h *Hub) Subscribe() (<-chan struct{}, func()) {
	// Buffer of 1: a pending signal coalesces with later ones.
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish signals all subscribers without blocking. Subscribers with a
// signal already pending are skipped.
func (h *Hub) Publish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
