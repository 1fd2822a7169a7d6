package ws

import (
	"sync"
)

// Hub tracks the live widget connections.
type Hub struct {
	clients map[*Client]ConnInfo
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]ConnInfo)}
}

// Add registers a connection.
func (h *Hub) Add(client *Client, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = info
}

// Remove unregisters a connection and returns what was known about it.
func (h *Hub) Remove(client *Client) (ConnInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.clients[client]
	delete(h.clients, client)
	return info, ok
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every registered connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
