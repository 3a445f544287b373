package server

import (
	"log"
	"net/http"
	"time"

	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SkeletonsHandler forwards every tracked skeleton to websocket clients.
type SkeletonsHandler struct {
	hub *overlay.Hub
}

// NewSkeletonsHandler creates a new SkeletonsHandler fed by hub.
func NewSkeletonsHandler(hub *overlay.Hub) *SkeletonsHandler {
	return &SkeletonsHandler{hub: hub}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SkeletonsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	messages, cancel := h.hub.Subscribe()
	defer cancel()

	// The client never sends anything; reading detects when it goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg := <-messages:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
