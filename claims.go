package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the claim set carried by signed access tokens: the
// account's username as subject, a unique token id, and the role set the
// account held at issuance.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string         `json:"username,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"` // extension payload
}

// Subject returns the subject claim, the account username.
func (c *AccessClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountUsername resolves the username, preferring the explicit claim.
func (c *AccessClaims) AccountUsername() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject()
}

// TokenID returns the jti claim.
func (c *AccessClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// HasRole checks if the role set includes the given role
func (c *AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAtTime returns the issued at time
func (c *AccessClaims) IssuedAtTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID fills the jti claim with a fresh UUID when absent.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
