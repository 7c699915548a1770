// Package ws streams bulk-sync progress to operator dashboards.
package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains the set of connected progress listeners and broadcasts sync
// events to all of them. Listeners are read-only; slow listeners are dropped
// rather than allowed to stall a bulk run.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("📺 Progress listener connected (%d active)", h.count())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full: listener is too slow, drop the message.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends an event to every connected listener.
func (h *Hub) Broadcast(event interface{}) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling progress event: %v", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// Hub backlogged; progress events are advisory, not durable.
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
