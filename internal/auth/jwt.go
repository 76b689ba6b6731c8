// Package auth verifies the bearer tokens that carry a participant's identity.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aura-webinar/coordinator/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims holds the identity a token was issued for.
type Claims struct {
	UserID      string      `json:"user_id"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the session identity carried by the claims.
func (c *Claims) Identity() models.Identity {
	return models.Identity{UserID: c.UserID, DisplayName: c.DisplayName, Role: c.Role}
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// Generate creates a token for id. Issuing tokens belongs to the identity provider; this is
// used by tests and local tooling.
func (s *JWTService) Generate(id models.Identity) (string, error) {
	if id.UserID == "" || !id.Role.Valid() {
		return "", ErrInvalidToken
	}
	claims := Claims{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Role:        id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
