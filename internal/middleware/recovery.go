package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

// Recovery turns a handler panic into the standard 500 envelope. It sits
// outside ErrorHandler, which never sees a panicking request, so it renders
// the response itself.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error().
				Str("request_id", c.GetString(ContextRequestID)).
				Str("route", c.FullPath()).
				Str("method", c.Request.Method).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			httputil.RespondWithError(c, apperrors.NewInternal(fmt.Errorf("panic: %v", rec)), false)
		}()
		c.Next()
	}
}
