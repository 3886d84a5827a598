package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/tokens"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy handled by the CORS allowlist upstream
	},
}

type StateHandler struct {
	Coord  *coordinator.Coordinator
	Tokens *tokens.Manager
}

// GetState returns the current snapshot for clients that prefer polling or
// need an initial render before the socket opens.
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Coord.Snapshot())
}

// ServeWS upgrades and pushes a snapshot on every coordinator change. Auth is
// a query-param token, the usual pattern for browser websockets.
func (h *StateHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.Tokens.ValidateToken(tokenStr)
	if err != nil || claims.TokenType != tokens.Access {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[STATE-WS] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	subID, snapshots := h.Coord.Subscribe()
	defer h.Coord.Unsubscribe(subID)

	log.Printf("[STATE-WS] Connected: user=%s sub=%d", claims.Username, subID)

	// Reader drains control frames and detects close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Printf("[STATE-WS] Marshal failed: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
