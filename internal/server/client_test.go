package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/globalchat/internal/store"
)

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return frame
}

// TestWebSocketDeliversSnapshotAndLiveEvents verifies the WebSocket transport
// carries the same connected snapshot and live message frames as the SSE
// stream.
func TestWebSocketDeliversSnapshotAndLiveEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	token := registerUser(t, ts.URL, "alice")

	resp := postJSON(t, ts.URL+"/api/messages", token, map[string]string{"text": "before"})
	_ = resp.Body.Close()

	conn := dialWS(t, ts.URL)

	frame := readFrame(t, conn)
	if frame.Event != "connected" {
		t.Fatalf("Expected connected frame first, got %q", frame.Event)
	}
	var snapshot struct {
		Messages []store.Message `json:"messages"`
	}
	if err := json.Unmarshal(frame.Data, &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(snapshot.Messages) != 1 || snapshot.Messages[0].Text != "before" {
		t.Fatalf("Unexpected snapshot: %+v", snapshot.Messages)
	}

	resp = postJSON(t, ts.URL+"/api/messages", token, map[string]string{"text": "after"})
	_ = resp.Body.Close()

	frame = readFrame(t, conn)
	if frame.Event != "message" {
		t.Fatalf("Expected message frame, got %q", frame.Event)
	}
	var live store.Message
	if err := json.Unmarshal(frame.Data, &live); err != nil {
		t.Fatalf("Failed to decode live message: %v", err)
	}
	if live.Text != "after" || live.Username != "alice" {
		t.Errorf("Unexpected live message: %+v", live)
	}
}

// TestWebSocketDisconnectLowersOnlineCount verifies a closed connection
// deregisters its subscriber.
func TestWebSocketDisconnectLowersOnlineCount(t *testing.T) {
	ts := newTestServer(t, nil)

	conn := dialWS(t, ts.URL)
	if frame := readFrame(t, conn); frame.Event != "connected" {
		t.Fatalf("Expected connected frame, got %q", frame.Event)
	}

	statsCount := func() int {
		resp, err := http.Get(ts.URL + "/api/stats")
		if err != nil {
			t.Fatalf("GET /api/stats failed: %v", err)
		}
		var body struct {
			OnlineCount int `json:"onlineCount"`
		}
		decodeBody(t, resp, &body)
		return body.OnlineCount
	}

	if got := statsCount(); got != 1 {
		t.Fatalf("Expected onlineCount 1 while connected, got %d", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for statsCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Subscriber was not removed after disconnect")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
