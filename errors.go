package identity

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeAccountExists       = "ACCOUNT_EXISTS"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeCreationFailed      = "ACCOUNT_CREATION_FAILED"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeTwoFactorNotEnabled = "TWO_FACTOR_NOT_ENABLED"
	TextCodeInvalidOtp          = "INVALID_OTP"
	TextCodeInvalidToken        = "INVALID_CONFIRMATION_TOKEN"
	TextCodeRefreshInvalid      = "REFRESH_TOKEN_INVALID"
	TextCodePasswordMismatch    = "PASSWORD_MISMATCH"
	TextCodeRoleNotFound        = "ROLE_NOT_FOUND"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeAccountSuspended    = "ACCOUNT_SUSPENDED"
)

// ErrAccountExists is returned when registering a username that is taken.
var ErrAccountExists = errors.New("account already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(errors.CodeForbidden)

// ErrAccountNotFound is returned when no account matches the identifier.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrCreationFailed is returned when the credential store rejects a new
// account. The underlying cause is attached, not swallowed.
var ErrCreationFailed = errors.New("account creation failed", errors.CategoryInternal).
	WithTextCode(TextCodeCreationFailed).
	WithCode(errors.CodeInternal)

// ErrInvalidCredentials is the generic bad username/password outcome. It is
// intentionally indistinguishable from a missing account.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTwoFactorNotEnabled is returned for OTP operations against an account
// without the second factor enabled.
var ErrTwoFactorNotEnabled = errors.New("two factor is not enabled", errors.CategoryBadInput).
	WithTextCode(TextCodeTwoFactorNotEnabled).
	WithCode(errors.CodeBadRequest)

// ErrInvalidOtp covers wrong, expired, and already consumed codes.
var ErrInvalidOtp = errors.New("invalid otp", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidOtp).
	WithCode(errors.CodeNotFound)

// ErrInvalidToken covers confirmation/reset tokens that fail account,
// purpose, expiry, or single-use checks.
var ErrInvalidToken = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeNotFound)

// ErrRefreshTokenInvalid is returned when the supplied refresh token does
// not match the stored one, the stored one expired, or a concurrent renewal
// rotated it first.
var ErrRefreshTokenInvalid = errors.New("refresh token invalid or expired", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshInvalid).
	WithCode(errors.CodeNotFound)

// ErrPasswordMismatch is returned when password and confirmation differ.
var ErrPasswordMismatch = errors.New("passwords do not match", errors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeBadRequest)

// ErrRoleNotFound is informational: unknown roles are skipped, never fatal.
var ErrRoleNotFound = errors.New("role not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRoleNotFound).
	WithCode(errors.CodeNotFound)

// ErrAccountSuspended blocks authentication for suspended accounts.
var ErrAccountSuspended = errors.New("account is suspended", errors.CategoryAuth).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(errors.CodeForbidden)

// ErrTokenExpired is returned when an access token is past its expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to parse or verify.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the bcrypt comparison failure.
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts enforces the login attempt cool-down.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithCode(errors.CodeUnauthorized)

// HasTextCode reports whether the outermost typed error in the chain
// carries the given text code. Wrapped errors keep the sentinel's text code
// even when the cause differs, so this matches where errors.Is cannot.
func HasTextCode(err error, textCode string) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}
