package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the acting user's id, set by the upstream gateway
	// after it has authenticated the caller.
	UserIDHeader = "X-User-ID"

	userIDKey = "actingUserID"
)

// RequireUser resolves the acting user from the request and rejects requests without one.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing " + UserIDHeader + " header",
			})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// ActingUserID returns the user resolved by RequireUser, or "" if none.
func ActingUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
