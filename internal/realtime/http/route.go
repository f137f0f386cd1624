package http

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the websocket namespaces. Browsers cannot set
// headers on an upgrade, so clients pass the token as access_token.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/ws")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("/reservation", h.Reservation) // Reservation channel
	}
}
