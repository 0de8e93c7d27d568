package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the account lifecycle status
type AccountStatus = string

const (
	// AccountStatusPending means the email address is not yet confirmed
	AccountStatusPending AccountStatus = "pending"
	// AccountStatusActive is a confirmed, usable account
	AccountStatusActive AccountStatus = "active"
	// AccountStatusSuspended blocks authentication until reinstated
	AccountStatusSuspended AccountStatus = "suspended"
	// AccountStatusArchived is terminal
	AccountStatusArchived AccountStatus = "archived"
)

// TokenPurpose scopes a confirmation token or OTP challenge
type TokenPurpose = string

const (
	// PurposeEmailConfirm proves control of the registration email
	PurposeEmailConfirm TokenPurpose = "email-confirm"
	// PurposePasswordReset authorizes a password change
	PurposePasswordReset TokenPurpose = "password-reset"
	// PurposeLoginOtp is the login-time second factor
	PurposeLoginOtp TokenPurpose = "login-2fa"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID               uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username         string        `bun:"username,notnull,unique" json:"username,omitempty"`
	Email            string        `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone            string        `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash     string        `bun:"password_hash" json:"-"`
	EmailConfirmed   bool          `bun:"is_email_confirmed" json:"is_email_confirmed,omitempty"`
	TwoFactorEnabled bool          `bun:"is_two_factor_enabled" json:"is_two_factor_enabled,omitempty"`
	Status           AccountStatus `bun:"status,notnull,default:'pending'" json:"status,omitempty"`

	// Single refresh-token slot: sha256 hash of the live value plus expiry.
	// Both nil when no session has been issued or the last one rotated out.
	RefreshTokenHash      *string    `bun:"refresh_token_hash,nullzero" json:"-"`
	RefreshTokenExpiresAt *time.Time `bun:"refresh_token_expires_at,nullzero" json:"-"`

	Roles []string `bun:"-" json:"roles,omitempty"`

	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasRole reports membership against the loaded role set.
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// EnsureStatus defaults the lifecycle status for new records.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = AccountStatusPending
	}
}

// AddMetadata will append information to a metadata attribute
func (a *Account) AddMetadata(key string, val any) *Account {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = val
	return a
}

// ConfirmationToken is the persisted form of a single-use, purpose-bound
// token. Only the sha256 hash of the raw value is stored.
type ConfirmationToken struct {
	bun.BaseModel `bun:"table:confirmation_tokens,alias:ctk"`

	ID         uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID  uuid.UUID    `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account    *Account     `bun:"rel:has-one,join:account_id=id" json:"account,omitempty"`
	Purpose    TokenPurpose `bun:"purpose,notnull" json:"purpose,omitempty"`
	TokenHash  string       `bun:"token_hash,notnull" json:"-"`
	ExpiresAt  time.Time    `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt *time.Time   `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt  *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Consumed reports whether the token was already used.
func (t *ConfirmationToken) Consumed() bool {
	return t.ConsumedAt != nil
}

// Expired reports whether the token is past its expiry at the given time.
func (t *ConfirmationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// OtpChallenge is a pending login-time second factor. The short code is
// stored hashed; Attempts bounds guesses against a single challenge.
type OtpChallenge struct {
	bun.BaseModel `bun:"table:otp_challenges,alias:otp"`

	ID         uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID  uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	CodeHash   string     `bun:"code_hash,notnull" json:"-"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	Attempts   int        `bun:"attempts" json:"attempts,omitempty"`
	CreatedAt  *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Consumed reports whether the challenge was already used.
func (o *OtpChallenge) Consumed() bool {
	return o.ConsumedAt != nil
}

// Expired reports whether the challenge is past its expiry.
func (o *OtpChallenge) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// AccountRole is the role membership row backing CredentialStore.GetRoles.
type AccountRole struct {
	bun.BaseModel `bun:"table:account_roles,alias:arl"`

	AccountID uuid.UUID  `bun:"account_id,pk,type:uuid" json:"account_id,omitempty"`
	Role      string     `bun:"role,pk" json:"role,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IssuedToken is the caller-facing shape of a freshly generated
// confirmation token: the raw value plus expiry, never persisted as-is.
type IssuedToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair is the session issued to an authenticated account: a signed
// access token and the opaque refresh token that rotates it.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
