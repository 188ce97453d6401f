package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Internal error details are only exposed when debug is set.
func ErrorHandler(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			level := zerolog.WarnLevel
			if appErr, ok := apperrors.As(e.Err); !ok || appErr.Code == apperrors.ErrInternal {
				level = zerolog.ErrorLevel
			}
			log.WithLevel(level).
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err, debug)
	}
}
