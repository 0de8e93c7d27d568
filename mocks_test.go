package identity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLogger implements identity.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// MockCredentialStore implements identity.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindByUsername(ctx context.Context, username string) (*identity.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockCredentialStore) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockCredentialStore) Create(ctx context.Context, account *identity.Account, password string) (*identity.Account, error) {
	args := m.Called(ctx, account, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockCredentialStore) VerifyPassword(ctx context.Context, account *identity.Account, password string) error {
	args := m.Called(ctx, account, password)
	return args.Error(0)
}

func (m *MockCredentialStore) UpdatePassword(ctx context.Context, accountID uuid.UUID, password string) error {
	args := m.Called(ctx, accountID, password)
	return args.Error(0)
}

func (m *MockCredentialStore) MarkEmailConfirmed(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *MockCredentialStore) SetRefreshToken(ctx context.Context, accountID uuid.UUID, next identity.RefreshCredential) error {
	args := m.Called(ctx, accountID, next)
	return args.Error(0)
}

func (m *MockCredentialStore) SwapRefreshToken(ctx context.Context, accountID uuid.UUID, expectedHash string, next identity.RefreshCredential) error {
	args := m.Called(ctx, accountID, expectedHash, next)
	return args.Error(0)
}

func (m *MockCredentialStore) GetRoles(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCredentialStore) AssignRole(ctx context.Context, accountID uuid.UUID, role string) error {
	args := m.Called(ctx, accountID, role)
	return args.Error(0)
}

// captureNotifier records every delivery request it sees.
type captureNotifier struct {
	mu       sync.Mutex
	requests []identity.DeliveryRequest
}

func (n *captureNotifier) Deliver(_ context.Context, req identity.DeliveryRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
	return nil
}

func (n *captureNotifier) last() (identity.DeliveryRequest, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.requests) == 0 {
		return identity.DeliveryRequest{}, false
	}
	return n.requests[len(n.requests)-1], true
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}

// captureSink records activity events.
type captureSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event identity.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) types() []identity.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func testConfig() identity.SimpleConfig {
	return identity.SimpleConfig{
		SigningKey: "test-signing-key",
		Issuer:     "test-issuer",
		Audience:   []string{"test-audience"},
	}
}

func shortLivedConfig(accessMinutes int) identity.SimpleConfig {
	cfg := testConfig()
	cfg.AccessTokenMinutes = accessMinutes
	return cfg
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func assertTextCode(t *testing.T, err error, textCode string) {
	t.Helper()

	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich), "expected a rich error, got %T: %v", err, err)
	assert.Equal(t, textCode, rich.TextCode)
}
