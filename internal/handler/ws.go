package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabnet/internal/domain"
)

// SocketServer upgrades authenticated requests to realtime connections.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, id domain.Identity) error
}

// SocketHandler handles the realtime upgrade endpoint.
type SocketHandler struct {
	hub SocketServer
}

// NewSocketHandler creates a new SocketHandler.
func NewSocketHandler(hub SocketServer) *SocketHandler {
	return &SocketHandler{hub: hub}
}

// Connect handles GET /api/ws
func (h *SocketHandler) Connect(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	// The upgrader has already written a response on failure.
	if err := h.hub.ServeWS(c.Writer, c.Request, caller); err != nil {
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "identity", caller.ID, "error", err)
	}
}
