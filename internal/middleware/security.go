package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders marks every response as non-cacheable and non-embeddable.
// Responses carry patient records.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
