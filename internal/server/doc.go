// Package server implements the GlobalChat HTTP API: registration, message
// posting with per-token rate limiting, and the live message stream fanned
// out to SSE and WebSocket subscribers through the Hub.
package server
