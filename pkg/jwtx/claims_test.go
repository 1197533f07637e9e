package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/projectx/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "projectx",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("projectx"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		err := c.ValidateIssuer("other-service")
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})
}

func TestValidateExpiry(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid token", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(1 * time.Minute)),
			},
		}
		require.NoError(t, claims.ValidateExpiry())
	})

	t.Run("expired token", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			},
		}
		require.ErrorIs(t, claims.ValidateExpiry(), jwtx.ErrExpired)
	})

	t.Run("not yet valid", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				NotBefore: jwt.NewNumericDate(now.Add(1 * time.Minute)),
			},
		}
		require.ErrorIs(t, claims.ValidateExpiry(), jwtx.ErrNotYetValid)
	})

	t.Run("leeway allows slight skew", func(t *testing.T) {
		claims := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-2 * time.Second)),
			},
		}
		require.NoError(t, claims.ValidateExpiryWithLeeway(5*time.Second))
	})
}

func TestNewClaims(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	c := jwtx.NewClaims("01J0USER", "Manager", 0, "projectx", now)
	require.Equal(t, "01J0USER", c.Subject)
	require.Equal(t, "Manager", c.Role)
	require.Equal(t, "projectx", c.Issuer)
	require.NotEmpty(t, c.ID)
	require.Equal(t, now.Add(jwtx.DefaultTokenTTL), c.ExpiresAt.Time)

	other := jwtx.NewClaims("01J0USER", "Manager", time.Minute, "projectx", now)
	require.NotEqual(t, c.ID, other.ID)
	require.Equal(t, now.Add(time.Minute), other.ExpiresAt.Time)
}
