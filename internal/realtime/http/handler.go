package http

import (
	"log"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/realtime"
)

type Handler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewHandler accepts upgrades from allowedOrigins. An empty list accepts
// any origin.
func NewHandler(hub *realtime.Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) Reservation(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the client.
		log.Printf("[realtime] upgrade failed: %v", err)
		return
	}
	h.hub.Serve(c.Request.Context(), conn, actor)
}
