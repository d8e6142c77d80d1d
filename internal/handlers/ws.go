package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"research-backend/internal/contextutil"
	"research-backend/internal/notify"
)

// WSHandler upgrades /ws/{clientId} to a WebSocket and registers it with the
// hub until the client goes away. Messages sent by the client are ignored.
type WSHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *notify.Hub) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same policy as the CORS middleware: any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws/{clientId}.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	clientID := chi.URLParam(r, "clientId")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client id is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		logger.WarnContext(ctx, "websocket upgrade failed", "client_id", clientID, "error", err)
		return
	}
	defer conn.Close()

	h.hub.Connect(clientID, conn)
	defer h.hub.Release(clientID, conn)
	logger.InfoContext(ctx, "websocket connected", "client_id", clientID, "clients", h.hub.Len())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnContext(ctx, "websocket closed unexpectedly", "client_id", clientID, "error", err)
			}
			break
		}
	}
	logger.InfoContext(ctx, "websocket disconnected", "client_id", clientID)
}
