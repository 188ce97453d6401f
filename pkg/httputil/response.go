package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/practice-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string              `json:"status"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  []errors.FieldError `json:"errors,omitempty"`
	TraceID string              `json:"trace_id,omitempty"`
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, data)
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	Respond(c, http.StatusCreated, data)
}

func Respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Status: StatusSuccess, Data: data})
}

// NewErrorResponse builds the error envelope for err. Messages of internal
// errors are replaced unless debug is set.
func NewErrorResponse(err error, debug bool) (int, Response) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternal(err)
	}

	message := appErr.Message
	if appErr.Code == errors.ErrInternal && debug && err != nil {
		message = err.Error()
	}
	return appErr.StatusCode(), Response{
		Status:  StatusError,
		Message: message,
		Errors:  appErr.Fields,
	}
}

// RespondWithError sends the error envelope and aborts the chain
func RespondWithError(c *gin.Context, err error, debug bool) {
	status, body := NewErrorResponse(err, debug)
	body.TraceID = c.GetString("request_id")
	c.AbortWithStatusJSON(status, body)
}

// RespondWithMessage sends an error envelope with a fixed status and message
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Status:  StatusError,
		Message: message,
		TraceID: c.GetString("request_id"),
	})
}
