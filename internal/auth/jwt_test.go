package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/coordinator/internal/models"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := models.Identity{UserID: "m1", DisplayName: "Mira", Role: models.RoleModerator}

	token, err := svc.Generate(id)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, id, claims.Identity())
}

func TestJWTService_RejectsBadTokens(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate(models.Identity{UserID: "a1", Role: models.RoleAttendee})
	require.NoError(t, err)

	_, err = NewJWTService("other", 1).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Generate(models.Identity{UserID: "x", Role: "admin"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsExpiredAndUnknownRole(t *testing.T) {
	svc := NewJWTService("secret", 1)
	sign := func(c Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}

	expired := sign(Claims{UserID: "a1", Role: models.RoleAttendee, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	_, err := svc.Validate(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	speaker := sign(Claims{UserID: "a1", Role: "speaker"})
	_, err = svc.Validate(speaker)
	require.ErrorIs(t, err, ErrInvalidToken)
}
