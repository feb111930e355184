package app

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"bugtrack/api/internal/store"
)

// wsMessage is the wire format pushed to WebSocket clients: a full
// snapshot on connect (init) and after every mutation (update).
type wsMessage struct {
	Type       string         `json:"type"` // "init" | "update"
	UpdateType string         `json:"updateType,omitempty"`
	Version    int            `json:"version"`
	Records    []store.Record `json:"records"`
}

// Hub tracks the live WebSocket connections and fans snapshots out to
// them. Delivery is fire-and-forget through per-connection buffered
// channels and writer goroutines, so a slow or dead consumer never
// blocks the mutating request or the other connections.
type Hub struct {
	mu    sync.Mutex
	conns map[*hubConn]struct{}
}

type hubConn struct {
	socket *websocket.Conn
	send   chan wsMessage
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*hubConn]struct{})}
}

// Register adds a connection and queues the init snapshot for it alone.
// It also starts the connection's writer and a reader that exists only
// to notice the peer going away.
func (h *Hub) Register(socket *websocket.Conn, snap Snapshot) {
	c := &hubConn{
		socket: socket,
		send:   make(chan wsMessage, 16),
	}

	// The init message goes into the queue before the connection is
	// visible to Broadcast, so no update can ever be delivered (or close
	// the channel) ahead of it.
	c.send <- wsMessage{Type: "init", Version: snap.Version, Records: snap.Records}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Broadcast queues an update for every open connection. A connection
// whose buffer is full is dropped rather than waited on.
func (h *Hub) Broadcast(kind string, snap Snapshot) {
	msg := wsMessage{Type: "update", UpdateType: kind, Version: snap.Version, Records: snap.Records}

	var slow []*hubConn
	h.mu.Lock()
	for c := range h.conns {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		log.Printf("ws: dropping slow connection %s", c.socket.RemoteAddr())
		h.drop(c)
	}
}

// Count reports the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) writeLoop(c *hubConn) {
	for msg := range c.send {
		if err := c.socket.WriteJSON(msg); err != nil {
			h.drop(c)
			return
		}
	}
}

// readLoop discards inbound frames; its only job is detecting close.
func (h *Hub) readLoop(c *hubConn) {
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

// drop removes a connection from membership and closes it. Safe to call
// from multiple paths; only the first caller closes the send channel.
func (h *Hub) drop(c *hubConn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	close(c.send)
	h.mu.Unlock()

	_ = c.socket.Close()
}
