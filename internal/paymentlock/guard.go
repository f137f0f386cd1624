package paymentlock

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/response"
)

// Guard rejects a payment-initiating request while the principal already
// holds a payment lock, telling the client how long to wait. It MUST be
// used after auth.AuthRequired.
func Guard(l *Locker) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := c.Request.Context()
		key := Key(p.UserID, p.Role)
		locked, err := l.IsLocked(ctx, key)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !locked {
			c.Next()
			return
		}

		remaining, err := l.RemainingTTL(ctx, key)
		if err != nil {
			log.Printf("[paymentlock] ttl of %s: %v", key, err)
		}
		c.Header("Retry-After", retryAfterHeader(remaining))
		response.Error(c, LockedError(remaining))
		c.Abort()
	}
}
