package response

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// Error sends a JSON error response.
// It checks if the error is an AppError to determine the status code.
// If it's not an AppError, it defaults to 500 Internal Server Error.
// Server-side faults are logged with the full chain and answered generically.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= http.StatusInternalServerError {
			log.Printf("[api] %s %s: %v (cause: %v)", c.Request.Method, c.FullPath(), appErr, appErr.Err)
		}
		c.JSON(appErr.Code, ErrorResponse{Error: appErr.Message, Details: appErr.Details})
		return
	}

	log.Printf("[api] %s %s: internal error: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
