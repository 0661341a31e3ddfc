// Package server models stream subscribers as send capabilities so the hub
// never holds concrete transport handles.
package server

import (
	"errors"
	"sync"
)

// ErrSlowSubscriber is returned by Send when a subscriber's buffer is full.
// The hub treats it like any other delivery failure and drops the subscriber.
var ErrSlowSubscriber = errors.New("subscriber buffer full")

var errSubscriberClosed = errors.New("subscriber closed")

// Subscriber receives published events. Send must not block; a returned
// error means the subscriber is dead and will be removed from the hub.
type Subscriber interface {
	Send(ev Event) error
	Close() error
}

// streamSubscriber buffers events for one SSE connection. The handler
// goroutine drains Events and owns all transport writes.
type streamSubscriber struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func newStreamSubscriber(buffer int) *streamSubscriber {
	if buffer <= 0 {
		buffer = 64
	}
	return &streamSubscriber{events: make(chan Event, buffer)}
}

// Events is drained by the owning connection handler. The channel is closed
// when the subscriber is removed from the hub.
func (s *streamSubscriber) Events() <-chan Event {
	return s.events
}

func (s *streamSubscriber) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSubscriberClosed
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

func (s *streamSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
