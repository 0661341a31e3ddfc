// Package server coordinates subscriber registration, message fan-out, and
// connection cleanup for the GlobalChat stream via the Hub type.
package server

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Tyrowin/globalchat/internal/store"
)

// Hub is the broadcast registry: the set of live stream subscribers and the
// fan-out primitive that pushes each accepted message to all of them.
// All mutation and delivery happens under one mutex, which keeps per-
// subscriber delivery in publish order and makes the history snapshot in
// Join atomic with respect to concurrent publishes. Subscriber sends are
// non-blocking buffer enqueues, so the lock is never held across transport
// I/O.
type Hub struct {
	log *zap.Logger

	mu   sync.Mutex
	subs map[Subscriber]bool
}

// NewHub creates an empty hub ready to accept subscribers.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:  log,
		subs: make(map[Subscriber]bool),
	}
}

// Join registers a subscriber. Before registration it delivers a "connected"
// event carrying the history snapshot, both under the hub lock, so no
// message published concurrently can be missed or delivered twice around
// the snapshot boundary.
func (h *Hub) Join(sub Subscriber, history func() []store.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := history()
	if msgs == nil {
		msgs = []store.Message{}
	}
	data, err := json.Marshal(map[string]any{"messages": msgs})
	if err != nil {
		return err
	}
	if err := sub.Send(Event{Name: "connected", Data: data}); err != nil {
		return err
	}

	h.subs[sub] = true
	h.log.Info("subscriber joined", zap.Int("online", len(h.subs)))
	return nil
}

// Unsubscribe removes and closes a subscriber. Safe to call more than once
// or for a subscriber the hub has already dropped.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub, "")
}

// Publish serializes the payload once and delivers it to every registered
// subscriber. A failed delivery drops that subscriber but never blocks the
// rest or surfaces an error to the publisher.
func (h *Hub) Publish(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("could not marshal event payload",
			zap.String("event", name), zap.Error(err))
		return
	}
	ev := Event{Name: name, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()

	var failed []Subscriber
	for sub := range h.subs {
		if err := sub.Send(ev); err != nil {
			failed = append(failed, sub)
		}
	}
	for _, sub := range failed {
		h.removeLocked(sub, "send failed")
	}
}

// Count reports the number of registered subscribers, used as the online
// count in stats responses.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Shutdown closes every subscriber and empties the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		delete(h.subs, sub)
		_ = sub.Close()
	}
	h.log.Info("hub shut down")
}

// removeLocked deletes and closes a subscriber if still registered.
// Callers must hold h.mu.
func (h *Hub) removeLocked(sub Subscriber, reason string) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	_ = sub.Close()
	if reason != "" {
		h.log.Info("subscriber dropped",
			zap.String("reason", reason), zap.Int("online", len(h.subs)))
	} else {
		h.log.Info("subscriber left", zap.Int("online", len(h.subs)))
	}
}
