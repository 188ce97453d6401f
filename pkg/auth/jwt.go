package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims identify the owner every request is scoped to. The subject is the
// owner's id.
type Claims struct {
	jwt.RegisteredClaims
}

// OwnerID parses the subject claim.
func (c *Claims) OwnerID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not an owner id", ErrInvalidToken)
	}
	return id, nil
}

type JWTService interface {
	GenerateToken(ownerID uuid.UUID) (string, error)
	ValidateToken(token string) (*Claims, error)
}

// Manager issues and verifies HS256 owner tokens.
type Manager struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

func NewManager(secret, issuer string, expiry time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if expiry <= 0 {
		return nil, errors.New("jwt expiry must be positive")
	}
	return &Manager{secret: []byte(secret), issuer: issuer, expiry: expiry, now: time.Now}, nil
}

func (m *Manager) GenerateToken(ownerID uuid.UUID) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := claims.OwnerID(); err != nil {
		return nil, err
	}
	return claims, nil
}
