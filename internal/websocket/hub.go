package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains active dashboard WebSocket connections and broadcasts
// ingestion events to them.
type Hub struct {
	// Registered clients (userID -> Client)
	clients map[string]*Client

	// Outbound messages to fan out
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe client map access
	mu sync.RWMutex
}

// Message targets one user, one role, or (with both empty) every client
type Message struct {
	UserID string
	Role   string
	Data   interface{}
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = client
			h.mu.Unlock()
			log.Printf("✅ [WEBSOCKET] Client connected: %s (%s), total=%d", client.UserID, client.UserRole, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.UserID]; ok {
				delete(h.clients, client.UserID)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("🔴 [WEBSOCKET] Client disconnected: %s, remaining=%d", client.UserID, h.ClientCount())

		case message := <-h.broadcast:
			data, err := json.Marshal(message.Data)
			if err != nil {
				log.Printf("❌ Failed to marshal message: %v", err)
				continue
			}

			h.mu.Lock()
			for userID, client := range h.clients {
				if message.UserID != "" && message.UserID != userID {
					continue
				}
				if message.Role != "" && message.Role != client.UserRole {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Client buffer full, disconnect
					close(client.send)
					delete(h.clients, userID)
					log.Printf("⚠️ Client buffer full, disconnecting: %s", userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToUser sends a message to a specific user
func (h *Hub) BroadcastToUser(userID string, data interface{}) {
	h.broadcast <- &Message{UserID: userID, Data: data}
}

// BroadcastToRole sends a message to every client with the given role
func (h *Hub) BroadcastToRole(role string, data interface{}) {
	h.broadcast <- &Message{Role: role, Data: data}
}

// BroadcastAll sends a message to every connected client
func (h *Hub) BroadcastAll(data interface{}) {
	h.broadcast <- &Message{Data: data}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
