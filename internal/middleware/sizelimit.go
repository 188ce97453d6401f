package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/pkg/httputil"
)

const DefaultMaxBodySize int64 = 1 << 20

// BodyLimit rejects declared bodies above max and caps the reader for
// bodies without a declared length.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			httputil.RespondWithMessage(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", max))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
