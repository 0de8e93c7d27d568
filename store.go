package identity

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MaxLoginAttempts is the maximun number of attempts an account gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// ValidatePassword is the policy every cleartext password must clear
// before it is hashed and stored.
var ValidatePassword = func(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.Length(8, 128),
	)
}

// BunCredentialStore is the bun backed CredentialStore. Passwords are
// bcrypt hashed, refresh rotation goes through guarded SQL updates.
type BunCredentialStore struct {
	repo   RepositoryManager
	logger Logger
}

var (
	_ CredentialStore = (*BunCredentialStore)(nil)
	_ LoginTracker    = (*BunCredentialStore)(nil)
	_ RoleDirectory   = (*BunCredentialStore)(nil)
)

// NewCredentialStore creates a store backed by the repository manager.
func NewCredentialStore(repo RepositoryManager) *BunCredentialStore {
	return &BunCredentialStore{
		repo:   repo,
		logger: defLogger{},
	}
}

func (s *BunCredentialStore) WithLogger(logger Logger) *BunCredentialStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *BunCredentialStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	account, err := s.repo.Accounts().GetByIdentifier(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.loadRoles(ctx, account)
}

func (s *BunCredentialStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	account, err := s.repo.Accounts().GetByIdentifier(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.loadRoles(ctx, account)
}

func (s *BunCredentialStore) Create(ctx context.Context, account *Account, password string) (*Account, error) {
	if account == nil {
		return nil, errors.New("account must not be nil", errors.CategoryInternal)
	}

	if err := ValidatePassword(password); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "password rejected by policy").
			WithCode(errors.CodeBadRequest)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
	account.PasswordHash = hash

	created, err := s.repo.Accounts().Register(ctx, account)
	if err != nil {
		return nil, err
	}
	created.Roles = account.Roles

	return created, nil
}

// VerifyPassword compares the given cleartext against the stored hash and
// enforces the attempt cool down. Failed comparisons are tracked.
func (s *BunCredentialStore) VerifyPassword(ctx context.Context, account *Account, password string) error {
	if account == nil {
		return ErrAccountNotFound
	}

	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			account.LoginAttempts = 0
		}
	}

	// too many attempts in the window, cool off!
	if account.LoginAttempts > MaxLoginAttempts {
		return ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if err2 := s.TrackAttemptedLogin(ctx, account); err2 != nil {
			return errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		return ErrMismatchedHashAndPassword
	}

	if err := s.TrackSuccessfulLogin(ctx, account); err != nil {
		s.logger.Error("failed to track successful login: %v", err)
	}

	return nil
}

func (s *BunCredentialStore) UpdatePassword(ctx context.Context, accountID uuid.UUID, password string) error {
	if err := ValidatePassword(password); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "password rejected by policy").
			WithCode(errors.CodeBadRequest)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	return s.repo.Accounts().ResetPassword(ctx, accountID, hash)
}

func (s *BunCredentialStore) MarkEmailConfirmed(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.Accounts().MarkEmailConfirmed(ctx, accountID)
}

func (s *BunCredentialStore) SetRefreshToken(ctx context.Context, accountID uuid.UUID, next RefreshCredential) error {
	return s.repo.Accounts().SetRefreshToken(ctx, accountID, next.Hash, next.ExpiresAt)
}

func (s *BunCredentialStore) SwapRefreshToken(ctx context.Context, accountID uuid.UUID, expectedHash string, next RefreshCredential) error {
	swapped, err := s.repo.Accounts().SwapRefreshToken(ctx, accountID, expectedHash, next.Hash, next.ExpiresAt)
	if err != nil {
		return err
	}

	if !swapped {
		return ErrRefreshTokenInvalid
	}

	return nil
}

func (s *BunCredentialStore) GetRoles(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	return s.repo.Accounts().GetRoles(ctx, accountID)
}

func (s *BunCredentialStore) AssignRole(ctx context.Context, accountID uuid.UUID, role string) error {
	return s.repo.Accounts().AssignRole(ctx, accountID, role)
}

// RoleExists checks the static role list.
func (s *BunCredentialStore) RoleExists(_ context.Context, role string) (bool, error) {
	return knownRole(role), nil
}

func (s *BunCredentialStore) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	return s.repo.Accounts().TrackAttemptedLogin(ctx, account)
}

func (s *BunCredentialStore) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return s.repo.Accounts().TrackSuccessfulLogin(ctx, account)
}

func (s *BunCredentialStore) loadRoles(ctx context.Context, account *Account) (*Account, error) {
	roles, err := s.repo.Accounts().GetRoles(ctx, account.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account roles")
	}
	account.Roles = roles
	return account, nil
}

// BunConfirmationTokenStore adapts the token repositories to the issuer and
// challenge store interfaces.
type BunConfirmationTokenStore struct {
	repo RepositoryManager
}

var (
	_ ConfirmationTokenStore = (*BunConfirmationTokenStore)(nil)
	_ OtpChallengeStore      = (*BunConfirmationTokenStore)(nil)
)

func NewConfirmationTokenStore(repo RepositoryManager) *BunConfirmationTokenStore {
	return &BunConfirmationTokenStore{repo: repo}
}

func (s *BunConfirmationTokenStore) CreateConfirmationToken(ctx context.Context, record *ConfirmationToken) (*ConfirmationToken, error) {
	return s.repo.ConfirmationTokens().Create(ctx, record)
}

func (s *BunConfirmationTokenStore) FindConfirmationToken(ctx context.Context, accountID uuid.UUID, purpose TokenPurpose, tokenHash string) (*ConfirmationToken, error) {
	return s.repo.ConfirmationTokens().FindActive(ctx, accountID, purpose, tokenHash)
}

func (s *BunConfirmationTokenStore) ConsumeConfirmationToken(ctx context.Context, id uuid.UUID) error {
	return s.repo.ConfirmationTokens().Consume(ctx, id)
}

func (s *BunConfirmationTokenStore) CreateOtpChallenge(ctx context.Context, record *OtpChallenge) (*OtpChallenge, error) {
	return s.repo.OtpChallenges().Create(ctx, record)
}

func (s *BunConfirmationTokenStore) FindActiveOtpChallenge(ctx context.Context, accountID uuid.UUID) (*OtpChallenge, error) {
	return s.repo.OtpChallenges().FindActive(ctx, accountID)
}

func (s *BunConfirmationTokenStore) ConsumeOtpChallenge(ctx context.Context, id uuid.UUID) error {
	return s.repo.OtpChallenges().Consume(ctx, id)
}

func (s *BunConfirmationTokenStore) TrackFailedOtpAttempt(ctx context.Context, id uuid.UUID) error {
	return s.repo.OtpChallenges().TrackFailedAttempt(ctx, id)
}
