package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers booked slot routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/slots")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)               // List booked slots
		group.GET("/:id", h.Get)            // Get booked slot details
		group.PATCH("/status", h.SetStatus) // Release, complete or cancel
	}
}
