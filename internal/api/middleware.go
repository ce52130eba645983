package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestTimeout bounds each request's context so every external-service
// call downstream inherits the deadline.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TokenAuth validates the token query parameter against the configured API
// token. Routes registered outside the authenticated group skip it.
func TokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.Query("token")
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication required",
				"message": "missing 'token' query parameter",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication failed",
				"message": "invalid token",
			})
			return
		}
		c.Next()
	}
}
