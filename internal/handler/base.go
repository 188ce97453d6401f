package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/middleware"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

// Fail hands err to the error middleware and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Owner returns the authenticated owner id.
func Owner(c *gin.Context) (uuid.UUID, bool) {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		Fail(c, apperrors.Unauthorized(errors.New("no owner in request context")))
	}
	return owner, ok
}

// ParamID parses the named path parameter as an id.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Fail(c, apperrors.NewBadRequest(fmt.Sprintf("invalid %s", name), err))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes the request body into dst.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Fail(c, apperrors.NewBadRequest("request body too large", err))
			return false
		}
		Fail(c, apperrors.NewBadRequest("invalid request body", err))
		return false
	}
	return true
}

// OwnerAndID resolves the owner and the named path id together.
func OwnerAndID(c *gin.Context, name string) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := Owner(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := ParamID(c, name)
	return owner, id, ok
}
