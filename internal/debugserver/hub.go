// Package debugserver exposes a small HTTP + WebSocket surface for
// development and field debugging: a Prometheus scrape endpoint, a
// snapshot of the latest pipeline decision, and a live event stream for a
// browser-based dashboard. None of it sits on the perception-decision-
// guidance path — the executor and pipeline run unaffected if no
// dashboard ever connects.
package debugserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asgard/openeyes/internal/platform/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is one message pushed to connected dashboard clients.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// client is one connected dashboard WebSocket.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out events to every connected dashboard client. It is a
// single-operator debugging aid, not a multi-tenant broadcaster, so it
// carries none of the access-level filtering a server-side dashboard
// would need.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub starts the fan-out loop and returns a ready-to-use Hub.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			observability.UpdateWebSocketConnections(h.count())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			observability.UpdateWebSocketConnections(h.count())

		case ev := <-h.broadcast:
			h.deliver(ev)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[debugserver] marshal event: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
			observability.GetMetrics().WebSocketMessages.WithLabelValues(ev.Type).Inc()
		default:
			log.Printf("[debugserver] client buffer full, dropping %s event", ev.Type)
		}
	}
}

// Broadcast queues an event for delivery to every connected client. It
// never blocks: a full queue drops the event.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	select {
	case h.broadcast <- Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: payload}:
	default:
		log.Printf("[debugserver] broadcast queue full, dropping %s event", eventType)
	}
}

// Close stops the fan-out loop.
func (h *Hub) Close() {
	h.cancel()
}

// ServeWS upgrades the request to a WebSocket and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[debugserver] upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
