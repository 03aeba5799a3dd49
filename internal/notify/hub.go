// Package notify maintains the set of connected live clients and delivers
// escalation events to every open connection.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub is a concurrency-safe registry of connected live clients. Events are
// serialized once per broadcast and enqueued to each client's send queue, so
// every connection sees broadcasts in emission order. Notification is
// advisory: a slow or closing client is skipped, never an error.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client to the active set. No-op if already present.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("Live client registered", "clients", len(h.clients))
}

// Unregister removes a client from the active set and stops its delivery.
// Safe to call on an already-removed client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	remaining := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.shutdown()
		slog.Info("Live client unregistered", "clients", remaining)
	}
}

// Broadcast serializes the event once and enqueues it to every registered
// client. Delivery is best effort; marshal failures are logged and dropped.
func (h *Hub) Broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "error", err)
		return
	}

	// Snapshot under read lock so a concurrent register/unregister cannot
	// corrupt iteration.
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
