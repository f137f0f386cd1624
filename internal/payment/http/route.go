package http

import (
	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
)

// RegisterRoutes registers payment routes. guard rejects an initiation while
// the caller already has a payment in flight.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, guard gin.HandlerFunc) {
	group := g.Group("/payments")

	// === Customer Routes ===
	group.Use(authMiddleware, auth.RequireRole(auth.RoleCustomer))
	{
		group.POST("/initiate", guard, h.Initiate) // Open a gateway order
		group.POST("/confirm", h.Confirm)          // Verify payment and book
		group.POST("/abort", h.Abort)              // Give up the payment lock
	}
}
