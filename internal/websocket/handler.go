package websocket

import (
	"log"
	"net/http"

	"fleettrack-backend/internal/middleware"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Restrict in production
		return true
	},
}

// HandleWebSocket upgrades HTTP connection to WebSocket. Browsers cannot set
// the Authorization header on websocket upgrades, so the JWT arrives as a
// query parameter.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ParseToken(tokenString)
		if err != nil {
			log.Printf("❌ Invalid websocket token: %v", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(claims.UserID, claims.Role, conn, hub)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
