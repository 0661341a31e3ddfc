// Package server implements the fixed-window post limiter that protects the
// shared message log from bursty posting.
package server

import (
	"sync"
	"time"
)

type postWindow struct {
	count   int
	resetAt time.Time
}

// PostLimiter counts posts per token in fixed, non-overlapping windows.
// Up to 2x the cap can land across a window boundary.
type PostLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	tokens map[string]*postWindow
}

// NewPostLimiter creates a limiter admitting at most max posts per token
// within each window.
func NewPostLimiter(max int, window time.Duration) *PostLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &PostLimiter{
		max:    max,
		window: window,
		tokens: make(map[string]*postWindow),
	}
}

// Allow reports whether the token may post at the given instant. The first
// post in a window (or after the previous window expired) opens a fresh
// window with count 1.
func (l *PostLimiter) Allow(token string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.tokens[token]
	if !ok || now.After(w.resetAt) {
		l.tokens[token] = &postWindow{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// Sweep removes entries whose window has already expired, bounding the map
// to actively posting tokens. Returns the number of entries removed.
func (l *PostLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for token, w := range l.tokens {
		if now.After(w.resetAt) {
			delete(l.tokens, token)
			removed++
		}
	}
	return removed
}
