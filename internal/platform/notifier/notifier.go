// Package notifier implements the document change-event channel. Every
// mutation of the document collection fires one collection-wide event to all
// current subscribers, regardless of which row or which user caused it.
// Subscribers are expected to refetch and apply their own access scope;
// the stream itself is deliberately unfiltered.
package notifier

import (
	"sync"
)

// Hub fans a change event out to every subscribed callback. Events carry no
// payload: a notified consumer must treat its next fetch as a full snapshot,
// never an incremental delta, and must tolerate the snapshot having changed
// again by the time it arrives.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]func()
	forward func()
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]func())}
}

// Subscription is the handle returned by Subscribe. Release is idempotent:
// releasing twice is a no-op, not an error.
type Subscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

// Subscribe registers a callback invoked on every collection mutation.
// Callbacks must be cheap and non-blocking; the websocket layer satisfies
// this with a buffered send channel.
func (h *Hub) Subscribe(fn func()) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs[id] = fn
	return &Subscription{hub: h, id: id}
}

// Release removes the subscription. After Release returns, the callback will
// not be invoked again; events racing with Release may still deliver once.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
}

// Publish notifies every current subscriber and forwards the event to the
// cross-instance bridge when one is attached.
func (h *Hub) Publish() {
	h.broadcast()

	h.mu.Lock()
	forward := h.forward
	h.mu.Unlock()
	if forward != nil {
		forward()
	}
}

// broadcast invokes the local subscribers only. The callback list is
// snapshotted under the lock and invoked outside it so a callback may
// subscribe or release without deadlocking.
func (h *Hub) broadcast() {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// setForward attaches the cross-instance forwarding hook.
func (h *Hub) setForward(fn func()) {
	h.mu.Lock()
	h.forward = fn
	h.mu.Unlock()
}
