// Package server defines the event and request payload types shared across
// the hub, subscribers, and handlers.
package server

import (
	"encoding/json"
	"strings"
)

// Event is a named payload pushed to stream subscribers. Data is the
// JSON-encoded payload, marshaled once per publish.
type Event struct {
	Name string
	Data []byte
}

// wsFrame is the JSON shape of an event on the WebSocket transport.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type registerRequest struct {
	Username string `json:"username"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
