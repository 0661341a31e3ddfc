// Package server exposes the HTTP handlers for registration, posting,
// history, the live event stream, and presence stats.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/globalchat/internal/store"
)

// maxBodyBytes bounds request bodies on the JSON endpoints.
const maxBodyBytes = 10 << 10

// Server composes the store, hub, and limiters behind the HTTP API. All
// shared state is injected here rather than held in package globals so the
// concurrency boundaries stay visible and testable.
type Server struct {
	cfg      Config
	log      *zap.Logger
	store    store.Store
	hub      *Hub
	limiter  *PostLimiter
	gate     *ipGate
	upgrader websocket.Upgrader
}

// NewServer wires the request handlers to their dependencies.
func NewServer(cfg Config, log *zap.Logger, st store.Store, hub *Hub, limiter *PostLimiter) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	origins := newOriginPolicy(cfg.AllowedOrigins, log)
	return &Server{
		cfg:     cfg,
		log:     log,
		store:   st,
		hub:     hub,
		limiter: limiter,
		gate:    newIPGate(cfg.RegisterGate.PerMinute, cfg.RegisterGate.Burst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// handleRegister issues a fresh session token for a display name.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.gate.allow(r.RemoteAddr) {
		s.writeError(w, http.StatusTooManyRequests, "Too many registration attempts. Try again later.")
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Username required")
		return
	}
	username := normalizeUsername(req.Username, s.cfg.MaxUsernameLen)
	if username == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid username")
		return
	}

	token, err := newToken()
	if err != nil {
		s.log.Error("could not generate token", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.store.RegisterUser(token, username, time.Now().UnixMilli()); err != nil {
		s.log.Error("could not persist registration", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info("user registered", zap.String("username", username))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": username,
	})
}

// handleMessages serves the retained log on GET and accepts a post on POST.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"messages": s.store.Recent(s.cfg.HistoryCap),
		})
	case http.MethodPost:
		s.handlePostMessage(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-User-Token")
	user, ok := s.store.LookupUser(token)
	if token == "" || !ok {
		s.writeError(w, http.StatusUnauthorized, "Invalid token. Please register.")
		return
	}

	if !s.limiter.Allow(token, time.Now()) {
		s.writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("Slow down! Max %d messages per %.0f seconds.",
				s.cfg.RateLimit.Max, s.cfg.RateLimit.Window.Seconds()))
		return
	}

	var req postMessageRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "Message text required")
		return
	}

	msg := store.Message{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Text:      sanitizeText(req.Text, s.cfg.MaxTextLen),
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.store.Append(msg); err != nil {
		s.log.Error("could not persist message", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.hub.Publish("message", msg)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": msg,
	})
}

// handleStream serves the SSE event stream: a "connected" snapshot of recent
// history, then every subsequent message, with comment heartbeats to keep
// intermediaries from dropping the idle connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := newStreamSubscriber(64)
	if err := s.hub.Join(sub, func() []store.Message {
		return s.store.Recent(s.cfg.SnapshotSize)
	}); err != nil {
		s.log.Error("could not join stream", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer s.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleWS serves the same stream over WebSocket for clients that prefer it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newWSClient(conn, s.hub, s.log, s.cfg.Heartbeat, r.RemoteAddr)
	if err := s.hub.Join(client, func() []store.Message {
		return s.store.Recent(s.cfg.SnapshotSize)
	}); err != nil {
		s.log.Error("could not join stream", zap.Error(err))
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// handleStats reports the subscriber count as an online-count approximation.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"onlineCount": s.hub.Count(),
	})
}

// handleHealth is a plain-text liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "GlobalChat server is running!")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("could not write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// newToken returns 128 bits of hex-encoded entropy identifying a session.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
