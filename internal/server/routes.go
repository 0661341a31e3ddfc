// Package server wires the HTTP handlers into a ServeMux behind the CORS
// middleware.
package server

import "net/http"

// Routes returns the handler tree for the GlobalChat API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return corsMiddleware(mux)
}
