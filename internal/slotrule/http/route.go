package http

import (
	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
)

// RegisterRoutes registers slot rule routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/rule")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)                                       // List rules
		group.GET("/:ruleId", h.Get)                                // Get rule details
		group.GET("/available_slots/:providerId", h.AvailableSlots) // Next free slot + day schedule
	}

	// === Provider Routes ===
	manage := group.Group("", auth.RequireRole(auth.RoleProvider, auth.RoleAdmin))
	{
		manage.POST("", h.Create)            // Create rule
		manage.PUT("/:ruleId", h.Update)     // Edit rule
		manage.PATCH("/status", h.SetStatus) // Toggle active
		manage.DELETE("/:ruleId", h.Delete)  // Remove rule
	}
}
