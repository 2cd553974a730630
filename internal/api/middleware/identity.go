package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wanderlust/internal/logger"
)

// HeaderUserID identifies the acting user. Authentication happens upstream.
const HeaderUserID = "X-User-ID"

const userIDKey = "user_id"

// Identity reads the acting user from the X-User-ID header. A missing header
// means an anonymous request; a malformed one is rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderUserID + " header"})
			return
		}
		userID := uint(id)
		c.Set(userIDKey, userID)
		c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), userID))
		c.Set("logger", logger.FromContext(c.Request.Context()))
		c.Next()
	}
}

// UserID returns the acting user, or nil for anonymous requests.
func UserID(c *gin.Context) *uint {
	v, ok := c.Get(userIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}
