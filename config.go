package identity

import (
	"time"
)

// SimpleConfig is a plain-struct Config implementation. Zero values fall
// back to the package defaults below.
type SimpleConfig struct {
	SigningKey string
	Issuer     string
	Audience   []string

	// AccessTokenMinutes is the signed access token lifetime.
	AccessTokenMinutes int
	// RefreshTokenDays is the opaque refresh token lifetime.
	RefreshTokenDays int
	// ConfirmationTokenTTL bounds email confirmation tokens.
	ConfirmationTokenTTL time.Duration
	// ResetTokenTTL bounds password reset tokens.
	ResetTokenTTL time.Duration
	// OtpTTL bounds login OTP codes.
	OtpTTL time.Duration
	// OtpDigits is the OTP code length.
	OtpDigits int

	// Notifier transport settings, consumed by SMTPNotifier.
	SMTP SMTPConfig
}

// SMTPConfig carries notifier endpoint credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

const (
	// DefaultAccessTokenMinutes matches the reference 60 minute window.
	DefaultAccessTokenMinutes = 60
	// DefaultRefreshTokenDays matches the reference 7 day window.
	DefaultRefreshTokenDays = 7
	// DefaultConfirmationTokenTTL bounds email confirmation links.
	DefaultConfirmationTokenTTL = 24 * time.Hour
	// DefaultResetTokenTTL bounds password reset links.
	DefaultResetTokenTTL = time.Hour
	// DefaultOtpTTL bounds login OTP codes.
	DefaultOtpTTL = 5 * time.Minute
	// DefaultOtpDigits is the OTP code length.
	DefaultOtpDigits = 6
)

var _ Config = SimpleConfig{}

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c SimpleConfig) GetIssuer() string { return c.Issuer }

func (c SimpleConfig) GetAudience() []string { return c.Audience }

func (c SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenMinutes <= 0 {
		return DefaultAccessTokenMinutes * time.Minute
	}
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c SimpleConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenDays <= 0 {
		return DefaultRefreshTokenDays * 24 * time.Hour
	}
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

func (c SimpleConfig) GetConfirmationTokenTTL() time.Duration {
	if c.ConfirmationTokenTTL <= 0 {
		return DefaultConfirmationTokenTTL
	}
	return c.ConfirmationTokenTTL
}

func (c SimpleConfig) GetResetTokenTTL() time.Duration {
	if c.ResetTokenTTL <= 0 {
		return DefaultResetTokenTTL
	}
	return c.ResetTokenTTL
}

func (c SimpleConfig) GetOtpTTL() time.Duration {
	if c.OtpTTL <= 0 {
		return DefaultOtpTTL
	}
	return c.OtpTTL
}

func (c SimpleConfig) GetOtpDigits() int {
	if c.OtpDigits <= 0 {
		return DefaultOtpDigits
	}
	return c.OtpDigits
}
