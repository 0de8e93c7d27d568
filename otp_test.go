package identity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoFactorChallenge_Generate(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryCredentialStore()
	account := seedAccount(t, store, "otpuser", "otpuser@example.com")

	challenge := identity.NewTwoFactorChallenge(store, testConfig())

	code, err := challenge.Generate(ctx, account)
	require.NoError(t, err)

	assert.Len(t, code.Value, identity.DefaultOtpDigits)
	for _, r := range code.Value {
		assert.True(t, r >= '0' && r <= '9', "otp must be numeric, got %q", code.Value)
	}
	assert.True(t, code.ExpiresAt.After(time.Now()))

	t.Run("nil account fails", func(t *testing.T) {
		_, err := challenge.Generate(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("honors configured digit count", func(t *testing.T) {
		cfg := testConfig()
		cfg.OtpDigits = 8
		wide := identity.NewTwoFactorChallenge(store, cfg)

		code, err := wide.Generate(ctx, account)
		require.NoError(t, err)
		assert.Len(t, code.Value, 8)
	})
}

func TestTwoFactorChallenge_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code succeeds exactly once", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "singleuse", "singleuse@example.com")
		challenge := identity.NewTwoFactorChallenge(store, testConfig())

		code, err := challenge.Generate(ctx, account)
		require.NoError(t, err)

		require.NoError(t, challenge.Validate(ctx, account, code.Value))

		err = challenge.Validate(ctx, account, code.Value)
		assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))
	})

	t.Run("wrong code fails and burns an attempt", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "fumbler", "fumbler@example.com")
		challenge := identity.NewTwoFactorChallenge(store, testConfig())

		code, err := challenge.Generate(ctx, account)
		require.NoError(t, err)

		err = challenge.Validate(ctx, account, "000000")
		assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))

		// the real code still works while attempts remain
		assert.NoError(t, challenge.Validate(ctx, account, code.Value))
	})

	t.Run("freshest challenge wins after a repeated login", func(t *testing.T) {
		frozen := time.Now()
		store := identity.NewMemoryCredentialStore().
			WithClock(func() time.Time { return frozen })
		account := seedAccount(t, store, "impatient", "impatient@example.com")
		challenge := identity.NewTwoFactorChallenge(store, testConfig())

		_, err := challenge.Generate(ctx, account)
		require.NoError(t, err)

		second, err := challenge.Generate(ctx, account)
		require.NoError(t, err)

		// the user triggered login twice; the code they were just sent works
		assert.NoError(t, challenge.Validate(ctx, account, second.Value))
	})

	t.Run("attempt budget exhausts the challenge", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "bruteforce", "bruteforce@example.com")
		challenge := identity.NewTwoFactorChallenge(store, testConfig())

		code, err := challenge.Generate(ctx, account)
		require.NoError(t, err)

		for i := 0; i < identity.MaxOtpAttempts; i++ {
			err = challenge.Validate(ctx, account, "999999")
			assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))
		}

		// even the correct code fails once the budget is gone
		err = challenge.Validate(ctx, account, code.Value)
		assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))
	})

	t.Run("expired challenge fails", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "latecomer", "latecomer@example.com")

		current := time.Now()
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}

		challenge := identity.NewTwoFactorChallenge(store, testConfig()).WithClock(clock)

		code, err := challenge.Generate(ctx, account)
		require.NoError(t, err)

		mu.Lock()
		current = current.Add(10 * time.Minute)
		mu.Unlock()

		err = challenge.Validate(ctx, account, code.Value)
		assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))
	})

	t.Run("no pending challenge fails", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "nochallenge", "nochallenge@example.com")
		challenge := identity.NewTwoFactorChallenge(store, testConfig())

		err := challenge.Validate(ctx, account, "123456")
		assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))
	})

	t.Run("empty code fails", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "emptycode", "emptycode@example.com")
		challenge := identity.NewTwoFactorChallenge(store, testConfig())

		_, err := challenge.Generate(ctx, account)
		require.NoError(t, err)

		err = challenge.Validate(ctx, account, "")
		assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))
	})

	t.Run("a fresh code supersedes nothing, both stay scoped", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		alice := seedAccount(t, store, "alice2fa", "alice2fa@example.com")
		bob := seedAccount(t, store, "bob2fa", "bob2fa@example.com")
		challenge := identity.NewTwoFactorChallenge(store, testConfig())

		aliceCode, err := challenge.Generate(ctx, alice)
		require.NoError(t, err)

		// bob cannot use alice's code
		err = challenge.Validate(ctx, bob, aliceCode.Value)
		assert.True(t, goerrors.Is(err, identity.ErrInvalidOtp))

		assert.NoError(t, challenge.Validate(ctx, alice, aliceCode.Value))
	})
}
