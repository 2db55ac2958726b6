package middleware

import (
	"github.com/gin-gonic/gin"
)

// CORS allows any origin; the API is token-authenticated, not cookie-based.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Idempotency-Key")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Idempotent-Replay")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
