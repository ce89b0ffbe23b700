package services

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"buntee/internal/config"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("maska123"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(config.Auth{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Admins:    []config.Admin{{Email: "Owner@Buntee.in", PasswordHash: string(hash)}},
	})
}

func TestAuthService_SignIn(t *testing.T) {
	auth := newTestAuth(t)

	t.Run("valid credentials", func(t *testing.T) {
		token, claims, err := auth.SignIn(" owner@buntee.in ", "maska123")
		require.NoError(t, err)
		assert.Equal(t, "owner@buntee.in", claims.Email)
		assert.True(t, claims.Principal().Admin)

		got, err := auth.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "owner@buntee.in", got.Email)
	})

	t.Run("wrong password or unknown email", func(t *testing.T) {
		_, _, err := auth.SignIn("owner@buntee.in", "nope")
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		_, _, err = auth.SignIn("someone@buntee.in", "maska123")
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("expired or foreign tokens", func(t *testing.T) {
		expired := &Claims{
			StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
			Email:          "owner@buntee.in",
			IsAdmin:        true,
		}
		token, err := auth.GenerateToken(expired)
		require.NoError(t, err)
		_, err = auth.Verify(token)
		assert.ErrorIs(t, err, ErrUnauthorized)

		other := NewAuthService(config.Auth{JWTSecret: "other-secret"})
		foreign, err := other.GenerateToken(&Claims{Email: "owner@buntee.in", IsAdmin: true})
		require.NoError(t, err)
		_, err = auth.Verify(foreign)
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = auth.Verify("")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("maska123")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("maska123")))
}
