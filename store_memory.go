package identity

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MemoryCredentialStore is an in-memory CredentialStore plus token stores.
// Meant for examples and tests; all guarded operations take the same lock,
// so single-use and compare-and-swap semantics hold under concurrency.
type MemoryCredentialStore struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*Account
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
	roles      map[uuid.UUID]map[string]struct{}
	tokens     map[uuid.UUID]*ConfirmationToken
	challenges map[uuid.UUID]*OtpChallenge
	otpOrder   map[uuid.UUID]uint64
	otpSeq     uint64
	directory  RoleDirectory
	now        func() time.Time
}

var (
	_ CredentialStore        = (*MemoryCredentialStore)(nil)
	_ ConfirmationTokenStore = (*MemoryCredentialStore)(nil)
	_ OtpChallengeStore      = (*MemoryCredentialStore)(nil)
	_ RoleDirectory          = (*MemoryCredentialStore)(nil)
)

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		accounts:   map[uuid.UUID]*Account{},
		byUsername: map[string]uuid.UUID{},
		byEmail:    map[string]uuid.UUID{},
		roles:      map[uuid.UUID]map[string]struct{}{},
		tokens:     map[uuid.UUID]*ConfirmationToken{},
		challenges: map[uuid.UUID]*OtpChallenge{},
		otpOrder:   map[uuid.UUID]uint64{},
		directory:  NewStaticRoleDirectory(),
		now:        time.Now,
	}
}

// WithRoleDirectory overrides the directory used by RoleExists.
func (s *MemoryCredentialStore) WithRoleDirectory(directory RoleDirectory) *MemoryCredentialStore {
	if directory != nil {
		s.directory = directory
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *MemoryCredentialStore) WithClock(clock func() time.Time) *MemoryCredentialStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

func (s *MemoryCredentialStore) FindByUsername(_ context.Context, username string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, notFound("username", username)
	}

	return s.snapshot(id), nil
}

func (s *MemoryCredentialStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, notFound("email", email)
	}

	return s.snapshot(id), nil
}

func (s *MemoryCredentialStore) Create(_ context.Context, account *Account, password string) (*Account, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[account.Username]; taken {
		return nil, ErrAccountExists
	}
	if _, taken := s.byEmail[account.Email]; taken {
		return nil, ErrAccountExists
	}

	record := cloneAccount(account)
	record.PasswordHash = hash
	record.EnsureStatus()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	s.accounts[record.ID] = record
	s.byUsername[record.Username] = record.ID
	s.byEmail[record.Email] = record.ID

	return s.snapshot(record.ID), nil
}

func (s *MemoryCredentialStore) VerifyPassword(_ context.Context, account *Account, password string) error {
	if account == nil {
		return ErrAccountNotFound
	}

	s.mu.Lock()
	record, ok := s.accounts[account.ID]
	if !ok {
		s.mu.Unlock()
		return ErrAccountNotFound
	}
	if record.LoginAttemptAt != nil {
		if expired, err := IsOutsideThresholdPeriod(*record.LoginAttemptAt, CoolDownPeriod); err == nil && expired {
			record.LoginAttempts = 0
		}
	}
	hash := record.PasswordHash
	attempts := record.LoginAttempts
	s.mu.Unlock()

	if attempts > MaxLoginAttempts {
		return ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, hash); err != nil {
		s.mu.Lock()
		record.LoginAttempts++
		now := s.now()
		record.LoginAttemptAt = &now
		s.mu.Unlock()
		return ErrMismatchedHashAndPassword
	}

	s.mu.Lock()
	record.LoginAttempts = 0
	record.LoginAttemptAt = nil
	now := s.now()
	record.LoggedInAt = &now
	s.mu.Unlock()

	return nil
}

// SetStatus moves the account through the lifecycle graph. Transitions the
// graph does not allow are rejected.
func (s *MemoryCredentialStore) SetStatus(_ context.Context, accountID uuid.UUID, status AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accounts[accountID]
	if !ok {
		return notFound("id", accountID.String())
	}

	if err := ValidateTransition(record.Status, status); err != nil {
		return err
	}

	record.Status = status
	return nil
}

func (s *MemoryCredentialStore) UpdatePassword(_ context.Context, accountID uuid.UUID, password string) error {
	if err := ValidatePassword(password); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "password rejected by policy").
			WithCode(errors.CodeBadRequest)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accounts[accountID]
	if !ok {
		return notFound("id", accountID.String())
	}
	record.PasswordHash = hash

	return nil
}

func (s *MemoryCredentialStore) MarkEmailConfirmed(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accounts[accountID]
	if !ok {
		return notFound("id", accountID.String())
	}

	record.EmailConfirmed = true
	if record.Status == AccountStatusPending {
		record.Status = AccountStatusActive
	}

	return nil
}

func (s *MemoryCredentialStore) SetRefreshToken(_ context.Context, accountID uuid.UUID, next RefreshCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accounts[accountID]
	if !ok {
		return notFound("id", accountID.String())
	}

	hash := next.Hash
	expiresAt := next.ExpiresAt
	record.RefreshTokenHash = &hash
	record.RefreshTokenExpiresAt = &expiresAt

	return nil
}

func (s *MemoryCredentialStore) SwapRefreshToken(_ context.Context, accountID uuid.UUID, expectedHash string, next RefreshCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accounts[accountID]
	if !ok {
		return notFound("id", accountID.String())
	}

	if record.RefreshTokenHash == nil || *record.RefreshTokenHash != expectedHash {
		return ErrRefreshTokenInvalid
	}

	hash := next.Hash
	expiresAt := next.ExpiresAt
	record.RefreshTokenHash = &hash
	record.RefreshTokenExpiresAt = &expiresAt

	return nil
}

func (s *MemoryCredentialStore) GetRoles(_ context.Context, accountID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := make([]string, 0, len(s.roles[accountID]))
	for role := range s.roles[accountID] {
		roles = append(roles, role)
	}

	return roles, nil
}

func (s *MemoryCredentialStore) AssignRole(_ context.Context, accountID uuid.UUID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return notFound("id", accountID.String())
	}

	if s.roles[accountID] == nil {
		s.roles[accountID] = map[string]struct{}{}
	}
	s.roles[accountID][role] = struct{}{}

	return nil
}

func (s *MemoryCredentialStore) RoleExists(ctx context.Context, role string) (bool, error) {
	return s.directory.RoleExists(ctx, role)
}

func (s *MemoryCredentialStore) CreateConfirmationToken(_ context.Context, record *ConfirmationToken) (*ConfirmationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	clone := *record
	s.tokens[record.ID] = &clone

	return record, nil
}

func (s *MemoryCredentialStore) FindConfirmationToken(_ context.Context, accountID uuid.UUID, purpose TokenPurpose, tokenHash string) (*ConfirmationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.tokens {
		if record.AccountID == accountID && record.Purpose == purpose && record.TokenHash == tokenHash {
			clone := *record
			return &clone, nil
		}
	}

	return nil, notFound("account_id", accountID.String())
}

func (s *MemoryCredentialStore) ConsumeConfirmationToken(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[id]
	if !ok {
		return notFound("id", id.String())
	}

	now := s.now()
	if record.Consumed() || record.Expired(now) {
		return ErrInvalidToken
	}
	record.ConsumedAt = &now

	return nil
}

func (s *MemoryCredentialStore) CreateOtpChallenge(_ context.Context, record *OtpChallenge) (*OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		created := s.now()
		record.CreatedAt = &created
	}

	// insertion order disambiguates challenges stamped in the same instant
	s.otpSeq++
	s.otpOrder[record.ID] = s.otpSeq

	clone := *record
	s.challenges[record.ID] = &clone

	return record, nil
}

func (s *MemoryCredentialStore) FindActiveOtpChallenge(_ context.Context, accountID uuid.UUID) (*OtpChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *OtpChallenge
	for _, record := range s.challenges {
		if record.AccountID != accountID || record.Consumed() {
			continue
		}
		if latest == nil || s.otpOrder[record.ID] > s.otpOrder[latest.ID] {
			latest = record
		}
	}

	if latest == nil {
		return nil, notFound("account_id", accountID.String())
	}

	clone := *latest
	return &clone, nil
}

func (s *MemoryCredentialStore) ConsumeOtpChallenge(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.challenges[id]
	if !ok {
		return notFound("id", id.String())
	}

	now := s.now()
	if record.Consumed() || record.Expired(now) {
		return ErrInvalidOtp
	}
	record.ConsumedAt = &now

	return nil
}

func (s *MemoryCredentialStore) TrackFailedOtpAttempt(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.challenges[id]
	if !ok {
		return notFound("id", id.String())
	}
	record.Attempts++

	return nil
}

// snapshot copies the record so callers never share memory with the store.
// Callers must hold the lock.
func (s *MemoryCredentialStore) snapshot(id uuid.UUID) *Account {
	record := s.accounts[id]
	clone := cloneAccount(record)

	roles := make([]string, 0, len(s.roles[id]))
	for role := range s.roles[id] {
		roles = append(roles, role)
	}
	clone.Roles = roles

	return clone
}

func cloneAccount(a *Account) *Account {
	if a == nil {
		return nil
	}

	clone := *a
	if a.RefreshTokenHash != nil {
		hash := *a.RefreshTokenHash
		clone.RefreshTokenHash = &hash
	}
	if a.RefreshTokenExpiresAt != nil {
		at := *a.RefreshTokenExpiresAt
		clone.RefreshTokenExpiresAt = &at
	}
	clone.Roles = append([]string(nil), a.Roles...)

	return &clone
}

func notFound(field, value string) error {
	return errors.New("record not found", errors.CategoryNotFound).
		WithTextCode("RECORD_NOT_FOUND").
		WithCode(errors.CodeNotFound).
		WithMetadata(map[string]any{field: value})
}
