package middleware

import (
	"github.com/gin-gonic/gin"
)

// UserContextMiddleware extracts the acting user from gateway headers. The
// gateway authenticates; this service only attributes writes.
func UserContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = "00000000-0000-0000-0000-000000000001" // Valid UUID for dev
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// GetUserID retrieves the acting user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
