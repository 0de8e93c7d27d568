package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// confirmationTokenEntropy is the raw byte length of confirmation tokens.
const confirmationTokenEntropy = 32

// ConfirmationTokenStore persists confirmation tokens. Consume must be
// guarded so a token can be marked used at most once.
type ConfirmationTokenStore interface {
	CreateConfirmationToken(ctx context.Context, record *ConfirmationToken) (*ConfirmationToken, error)
	FindConfirmationToken(ctx context.Context, accountID uuid.UUID, purpose TokenPurpose, tokenHash string) (*ConfirmationToken, error)
	ConsumeConfirmationToken(ctx context.Context, id uuid.UUID) error
}

// ConfirmationIssuer issues single-use, purpose-bound, time-boxed tokens
// for email confirmation and password resets.
type ConfirmationIssuer struct {
	store      ConfirmationTokenStore
	confirmTTL time.Duration
	resetTTL   time.Duration
	logger     Logger
	now        func() time.Time
}

var _ ConfirmationTokenIssuer = (*ConfirmationIssuer)(nil)

// NewConfirmationIssuer creates an issuer with TTLs from the config.
func NewConfirmationIssuer(store ConfirmationTokenStore, opts Config) *ConfirmationIssuer {
	return &ConfirmationIssuer{
		store:      store,
		confirmTTL: opts.GetConfirmationTokenTTL(),
		resetTTL:   opts.GetResetTokenTTL(),
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (ci *ConfirmationIssuer) WithLogger(logger Logger) *ConfirmationIssuer {
	if logger != nil {
		ci.logger = logger
	}
	return ci
}

// WithClock injects a custom clock (useful for tests).
func (ci *ConfirmationIssuer) WithClock(clock func() time.Time) *ConfirmationIssuer {
	if clock != nil {
		ci.now = clock
	}
	return ci
}

// Generate mints an unguessable token bound to (account, purpose). The raw
// value is returned once; storage only sees its hash.
func (ci *ConfirmationIssuer) Generate(ctx context.Context, account *Account, purpose TokenPurpose) (*IssuedToken, error) {
	if account == nil {
		return nil, errors.New("account must not be nil", errors.CategoryInternal)
	}

	ttl, err := ci.purposeTTL(purpose)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, confirmationTokenEntropy)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate confirmation token")
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	record := &ConfirmationToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		Purpose:   purpose,
		TokenHash: HashOpaqueToken(raw),
		ExpiresAt: ci.now().Add(ttl),
	}

	if _, err := ci.store.CreateConfirmationToken(ctx, record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to persist confirmation token")
	}

	return &IssuedToken{
		Value:     raw,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Validate fails closed on any mismatch of account, purpose, expiry, or
// prior consumption. It does not mark the token used.
func (ci *ConfirmationIssuer) Validate(ctx context.Context, account *Account, purpose TokenPurpose, token string) error {
	_, err := ci.lookup(ctx, account, purpose, token)
	return err
}

// Consume validates the token and marks it used. The store-level guard
// makes replays fail even when two consumers race.
func (ci *ConfirmationIssuer) Consume(ctx context.Context, account *Account, purpose TokenPurpose, token string) error {
	record, err := ci.lookup(ctx, account, purpose, token)
	if err != nil {
		return err
	}

	if err := ci.store.ConsumeConfirmationToken(ctx, record.ID); err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.IsNotFound(err) {
			return ErrInvalidToken
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to consume confirmation token")
	}

	return nil
}

func (ci *ConfirmationIssuer) lookup(ctx context.Context, account *Account, purpose TokenPurpose, token string) (*ConfirmationToken, error) {
	if account == nil || token == "" {
		return nil, ErrInvalidToken
	}

	record, err := ci.store.FindConfirmationToken(ctx, account.ID, purpose, HashOpaqueToken(token))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve confirmation token")
	}

	if record.Consumed() || record.Expired(ci.now()) {
		return nil, ErrInvalidToken
	}

	return record, nil
}

func (ci *ConfirmationIssuer) purposeTTL(purpose TokenPurpose) (time.Duration, error) {
	switch purpose {
	case PurposeEmailConfirm:
		return ci.confirmTTL, nil
	case PurposePasswordReset:
		return ci.resetTTL, nil
	default:
		return 0, errors.New("unknown confirmation token purpose", errors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": purpose})
	}
}
