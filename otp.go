package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MaxOtpAttempts bounds guesses against a single challenge before it is
// invalidated.
var MaxOtpAttempts = 5

// OtpChallengeStore persists login-time OTP challenges. Consume and
// TrackFailedAttempt must be guarded so each code succeeds at most once.
type OtpChallengeStore interface {
	CreateOtpChallenge(ctx context.Context, record *OtpChallenge) (*OtpChallenge, error)
	// FindActiveOtpChallenge returns the latest unconsumed challenge.
	FindActiveOtpChallenge(ctx context.Context, accountID uuid.UUID) (*OtpChallenge, error)
	ConsumeOtpChallenge(ctx context.Context, id uuid.UUID) error
	TrackFailedOtpAttempt(ctx context.Context, id uuid.UUID) error
}

// TwoFactorChallenge generates and validates one-time passwords used as a
// login second factor.
type TwoFactorChallenge struct {
	store  OtpChallengeStore
	ttl    time.Duration
	digits int
	logger Logger
	now    func() time.Time
}

// NewTwoFactorChallenge creates the OTP component with config TTL/length.
func NewTwoFactorChallenge(store OtpChallengeStore, opts Config) *TwoFactorChallenge {
	return &TwoFactorChallenge{
		store:  store,
		ttl:    opts.GetOtpTTL(),
		digits: opts.GetOtpDigits(),
		logger: defLogger{},
		now:    time.Now,
	}
}

func (tc *TwoFactorChallenge) WithLogger(logger Logger) *TwoFactorChallenge {
	if logger != nil {
		tc.logger = logger
	}
	return tc
}

// WithClock injects a custom clock (useful for tests).
func (tc *TwoFactorChallenge) WithClock(clock func() time.Time) *TwoFactorChallenge {
	if clock != nil {
		tc.now = clock
	}
	return tc
}

// Generate produces a short-lived code scoped to the account. The code is
// returned for delivery; storage only sees its hash.
func (tc *TwoFactorChallenge) Generate(ctx context.Context, account *Account) (*IssuedToken, error) {
	if account == nil {
		return nil, errors.New("account must not be nil", errors.CategoryInternal)
	}

	code, err := generateOtpCode(tc.digits)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate otp code")
	}

	record := &OtpChallenge{
		ID:        uuid.New(),
		AccountID: account.ID,
		CodeHash:  HashOpaqueToken(code),
		ExpiresAt: tc.now().Add(tc.ttl),
	}

	if _, err := tc.store.CreateOtpChallenge(ctx, record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist otp challenge")
	}

	return &IssuedToken{
		Value:     code,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Validate succeeds exactly once per generated code. Wrong codes count
// against the challenge's attempt budget; expired, consumed, or exhausted
// challenges fail with ErrInvalidOtp.
func (tc *TwoFactorChallenge) Validate(ctx context.Context, account *Account, code string) error {
	if account == nil || code == "" {
		return ErrInvalidOtp
	}

	record, err := tc.store.FindActiveOtpChallenge(ctx, account.ID)
	if err != nil {
		if errors.IsNotFound(err) {
			return ErrInvalidOtp
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to retrieve otp challenge")
	}

	if record.Consumed() || record.Expired(tc.now()) || record.Attempts >= MaxOtpAttempts {
		return ErrInvalidOtp
	}

	supplied := HashOpaqueToken(strings.TrimSpace(code))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(record.CodeHash)) != 1 {
		if err := tc.store.TrackFailedOtpAttempt(ctx, record.ID); err != nil {
			tc.logger.Warn("failed to track otp attempt: %v", err)
		}
		return ErrInvalidOtp
	}

	if err := tc.store.ConsumeOtpChallenge(ctx, record.ID); err != nil {
		if errors.Is(err, ErrInvalidOtp) || errors.IsNotFound(err) {
			return ErrInvalidOtp
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to consume otp challenge")
	}

	return nil
}

// generateOtpCode draws each digit from crypto/rand.
func generateOtpCode(digits int) (string, error) {
	if digits <= 0 {
		digits = DefaultOtpDigits
	}

	var sb strings.Builder
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteString(n.String())
	}

	return sb.String(), nil
}
