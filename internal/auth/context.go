package auth

import "github.com/gin-gonic/gin"

const (
	userIDKey = "userID"
	roleKey   = "userRole"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRole returns the authenticated user's role or empty string.
func GetRole(c *gin.Context) Role {
	if v, ok := c.Get(roleKey); ok {
		if r, ok := v.(Role); ok {
			return r
		}
	}
	return ""
}

// GetPrincipal returns the authenticated principal. ok is false when the
// request went through no auth middleware.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	p := Principal{UserID: GetUserID(c), Role: GetRole(c)}
	return p, p.UserID != "" && p.Role != ""
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set(userIDKey, p.UserID)
	c.Set(roleKey, p.Role)
}
