package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"realtors/auth"
)

// OptionalSession attaches the caller's session when a valid bearer token is
// present. Requests without one continue anonymously.
func (h *Handler) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || h.Auth == nil {
			c.Next()
			return
		}
		sess, err := h.Auth.Restore(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidSession) {
				log.Printf("Warning: session restore failed: %v", err)
			}
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// AdminRequired rejects callers without an admin session.
func (h *Handler) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := auth.FromContext(c.Request.Context())
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		if !sess.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access only"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
