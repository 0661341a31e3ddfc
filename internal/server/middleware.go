// Package server carries the HTTP middleware: permissive CORS for the
// embedded widget and a per-IP guard on registration.
package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// corsMiddleware allows any origin to call the JSON API with the headers the
// widget sends. Preflight requests are answered directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ipVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipGate throttles an endpoint per client IP with a token bucket. Entries
// for idle IPs are pruned periodically by the janitor.
type ipGate struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*ipVisitor
}

func newIPGate(perMinute, burst int) *ipGate {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &ipGate{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		visitors: make(map[string]*ipVisitor),
	}
}

func (g *ipGate) allow(remoteAddr string) bool {
	key := clientIP(remoteAddr)

	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.visitors[key]
	if !ok {
		v = &ipVisitor{limiter: rate.NewLimiter(g.limit, g.burst)}
		g.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// prune drops visitors idle for longer than maxIdle and returns the number
// removed.
func (g *ipGate) prune(maxIdle time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdle)
	for key, v := range g.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(g.visitors, key)
			removed++
		}
	}
	return removed
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err == nil && host != "" {
		return host
	}
	if remoteAddr != "" {
		return remoteAddr
	}
	return "unknown"
}
