package identity_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestAccessClaims_Subject(t *testing.T) {
	claims := &identity.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user123",
		},
	}

	assert.Equal(t, "user123", claims.Subject())
}

func TestAccessClaims_AccountUsername(t *testing.T) {
	t.Run("returns username claim when present", func(t *testing.T) {
		claims := &identity.AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user123",
			},
			Username: "alice",
		}

		assert.Equal(t, "alice", claims.AccountUsername())
	})

	t.Run("fallback to subject when username is empty", func(t *testing.T) {
		claims := &identity.AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: "user123",
			},
		}

		assert.Equal(t, "user123", claims.AccountUsername())
	})
}

func TestAccessClaims_TokenID(t *testing.T) {
	claims := &identity.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID: "token-abc",
		},
	}

	assert.Equal(t, "token-abc", claims.TokenID())
}

func TestAccessClaims_HasRole(t *testing.T) {
	tests := []struct {
		name      string
		roles     []string
		checkRole string
		expected  bool
	}{
		{
			name:      "has the role",
			roles:     []string{identity.RoleCustomer, identity.RoleAdmin},
			checkRole: identity.RoleAdmin,
			expected:  true,
		},
		{
			name:      "does not have the role",
			roles:     []string{identity.RoleCustomer},
			checkRole: identity.RoleAdmin,
			expected:  false,
		},
		{
			name:      "empty role set",
			roles:     nil,
			checkRole: identity.RoleCustomer,
			expected:  false,
		},
		{
			name:      "role names are case sensitive",
			roles:     []string{"Admin"},
			checkRole: identity.RoleAdmin,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &identity.AccessClaims{Roles: tt.roles}
			assert.Equal(t, tt.expected, claims.HasRole(tt.checkRole))
		})
	}
}

func TestAccessClaims_Expires(t *testing.T) {
	t.Run("returns expiration when set", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		claims := &identity.AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		}

		assert.Equal(t, exp, claims.Expires())
	})

	t.Run("zero time when unset", func(t *testing.T) {
		claims := &identity.AccessClaims{}
		assert.True(t, claims.Expires().IsZero())
	})
}

func TestAccessClaims_IssuedAtTime(t *testing.T) {
	t.Run("returns issued at when set", func(t *testing.T) {
		iat := time.Now().Truncate(time.Second)
		claims := &identity.AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt: jwt.NewNumericDate(iat),
			},
		}

		assert.Equal(t, iat, claims.IssuedAtTime())
	})

	t.Run("zero time when unset", func(t *testing.T) {
		claims := &identity.AccessClaims{}
		assert.True(t, claims.IssuedAtTime().IsZero())
	})
}
