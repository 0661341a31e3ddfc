// Package server manages individual WebSocket stream clients, handling the
// read/write pumps and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 10 * time.Second

// wsClient adapts a WebSocket connection into a hub Subscriber. The stream
// is push-only: inbound frames are discarded, the read pump exists to detect
// disconnects promptly.
type wsClient struct {
	conn      *websocket.Conn
	hub       *Hub
	log       *zap.Logger
	addr      string
	heartbeat time.Duration

	mu     sync.Mutex
	events chan Event
	closed bool
}

func newWSClient(conn *websocket.Conn, hub *Hub, log *zap.Logger, heartbeat time.Duration, addr string) *wsClient {
	return &wsClient{
		conn:      conn,
		hub:       hub,
		log:       log,
		addr:      addr,
		heartbeat: heartbeat,
		events:    make(chan Event, 64),
	}
}

func (c *wsClient) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errSubscriberClosed
	}
	select {
	case c.events <- ev:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// readPump discards inbound frames until the connection errors, which is the
// transport-level disconnect signal that deregisters the subscriber.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in read pump",
				zap.String("addr", c.addr), zap.Error(err))
		}
	}()

	c.conn.SetReadLimit(512)
	readWait := 3 * c.heartbeat
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !isExpectedCloseError(err) && !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read ended",
					zap.String("addr", c.addr), zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards hub events as JSON frames and keeps the connection
// alive with pings on the heartbeat interval.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.heartbeat)
	defer func() {
		ticker.Stop()
		c.hub.Unsubscribe(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in write pump",
				zap.String("addr", c.addr), zap.Error(err))
		}
	}()

	for {
		select {
		case ev, ok := <-c.events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := wsFrame{Event: ev.Name, Data: json.RawMessage(ev.Data)}
			if err := c.conn.WriteJSON(frame); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Debug("websocket write failed",
						zap.String("addr", c.addr), zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
