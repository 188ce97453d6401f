package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/pkg/auth"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

const ContextOwnerID = "owner_id"

type AuthMiddleware struct {
	tokens auth.JWTService
}

func NewAuthMiddleware(tokens auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the owner id in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			message := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "token has expired"
			}
			log.Debug().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("Token rejected")
			httputil.RespondWithMessage(c, http.StatusUnauthorized, message)
			return
		}

		ownerID, err := claims.OwnerID()
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(ContextOwnerID, ownerID)
		c.Next()
	}
}

// OwnerID returns the authenticated owner.
func OwnerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextOwnerID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
