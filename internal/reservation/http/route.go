package http

import (
	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
)

// RegisterRoutes registers reservation (hold) routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/reservations")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("/check", h.Check)    // Is a slot held
		group.GET("/:id", h.Get)        // Get hold details
		group.DELETE("/:id", h.Release) // Abandon a hold
	}

	// === Customer Routes ===
	group.POST("", auth.RequireRole(auth.RoleCustomer), h.Create) // Hold a slot
}
