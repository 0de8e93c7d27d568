package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// RefreshCredential is the persisted form of a refresh token: the sha256
// hash of the raw value plus its expiry. The raw value never hits storage.
type RefreshCredential struct {
	Hash      string
	ExpiresAt time.Time
}

// CredentialStore is the durable account collaborator. Implementations own
// password hashing, uniqueness checks, role membership, and the single
// refresh-token slot per account.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// Create persists a new account, hashing the given cleartext password.
	// Password policy violations surface as validation errors.
	Create(ctx context.Context, account *Account, password string) (*Account, error)

	VerifyPassword(ctx context.Context, account *Account, password string) error
	UpdatePassword(ctx context.Context, accountID uuid.UUID, password string) error

	MarkEmailConfirmed(ctx context.Context, accountID uuid.UUID) error

	// SetRefreshToken unconditionally overwrites the account's refresh slot,
	// superseding any previously issued refresh token.
	SetRefreshToken(ctx context.Context, accountID uuid.UUID, next RefreshCredential) error

	// SwapRefreshToken replaces the refresh slot only if it still holds
	// expectedHash. A lost race returns ErrRefreshTokenInvalid.
	SwapRefreshToken(ctx context.Context, accountID uuid.UUID, expectedHash string, next RefreshCredential) error

	GetRoles(ctx context.Context, accountID uuid.UUID) ([]string, error)
	AssignRole(ctx context.Context, accountID uuid.UUID, role string) error
}

// LoginTracker is an optional CredentialStore capability used to enforce
// the login attempt cool-down.
type LoginTracker interface {
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// RoleDirectory is the source of truth for which role names exist.
type RoleDirectory interface {
	RoleExists(ctx context.Context, role string) (bool, error)
}

// TokenService issues and rotates access/refresh token pairs.
type TokenService interface {
	Issue(ctx context.Context, account *Account) (*TokenPair, error)
	Renew(ctx context.Context, pair TokenPair) (*TokenPair, error)
	Validate(tokenString string) (*AccessClaims, error)
	SignClaims(claims *AccessClaims) (string, error)
}

// ConfirmationTokenIssuer produces and checks single-use, purpose-bound
// tokens for email confirmation and password resets.
type ConfirmationTokenIssuer interface {
	Generate(ctx context.Context, account *Account, purpose TokenPurpose) (*IssuedToken, error)
	Validate(ctx context.Context, account *Account, purpose TokenPurpose, token string) error
	// Consume validates and marks the token used in one step; replays fail.
	Consume(ctx context.Context, account *Account, purpose TokenPurpose, token string) error
}

// Config holds engine options.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetConfirmationTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetOtpTTL() time.Duration
	GetOtpDigits() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
