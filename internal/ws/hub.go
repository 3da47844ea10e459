package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"crashwatch/internal/logger"
)

// Hub tracks connected operator clients and serializes all writes to them.
// The per-hub write lock keeps broadcast pushes and per-connection replies
// from interleaving on the same connection.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     *logger.Logger
}

// NewHub returns an empty Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		log:     log,
	}
}

// Register adds an operator connection.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("operator client connected, total %d", count)
}

// Unregister removes and closes an operator connection. Unknown connections
// are ignored, so the deferred call after a failed registration path neither
// closes anything nor logs a phantom disconnect.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Info("operator client disconnected, total %d", count)
	}
}

// Broadcast sends a message to every connected operator client. Connections
// that fail to accept the write are dropped.
func (h *Hub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Error("broadcast write failed: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Send writes a reply to one connection under the hub's write lock.
func (h *Hub) Send(conn *websocket.Conn, message []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, message)
}

// ClientCount returns the number of connected operator clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
