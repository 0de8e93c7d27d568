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

func seedAccount(t *testing.T, store *identity.MemoryCredentialStore, username, email string) *identity.Account {
	t.Helper()

	account, err := store.Create(context.Background(), &identity.Account{
		Username: username,
		Email:    email,
		Status:   identity.AccountStatusActive,
	}, "securePassword123!")
	require.NoError(t, err)

	require.NoError(t, store.AssignRole(context.Background(), account.ID, identity.RoleCustomer))
	account.Roles = []string{identity.RoleCustomer}

	return account
}

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryCredentialStore()
	account := seedAccount(t, store, "tuser", "tuser@example.com")

	service := identity.NewTokenService(store, testConfig())

	pair, err := service.Issue(ctx, account)
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.AccessExpiresAt.After(time.Now()))
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	t.Run("access token carries identity claims", func(t *testing.T) {
		claims, err := service.Validate(pair.AccessToken)
		require.NoError(t, err)

		assert.Equal(t, "tuser", claims.AccountUsername())
		assert.Equal(t, "test-issuer", claims.Issuer)
		assert.Contains(t, []string(claims.Audience), "test-audience")
		assert.NotEmpty(t, claims.TokenID())
		assert.True(t, claims.HasRole(identity.RoleCustomer))
	})

	t.Run("issue for nil account fails", func(t *testing.T) {
		_, err := service.Issue(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("issuing again supersedes the previous refresh token", func(t *testing.T) {
		next, err := service.Issue(ctx, account)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		_, err = service.Renew(ctx, *pair)
		assert.True(t, goerrors.Is(err, identity.ErrRefreshTokenInvalid))
	})
}

func TestTokenService_Renew(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the pair and invalidates the old refresh token", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "renewer", "renewer@example.com")
		service := identity.NewTokenService(store, testConfig())

		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		next, err := service.Renew(ctx, *pair)
		require.NoError(t, err)

		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		assert.NotEmpty(t, next.AccessToken)

		_, err = service.Renew(ctx, *pair)
		assert.True(t, goerrors.Is(err, identity.ErrRefreshTokenInvalid))

		_, err = service.Renew(ctx, *next)
		assert.NoError(t, err)
	})

	t.Run("accepts an expired access token", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "expired", "expired@example.com")

		current := time.Now()
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}

		service := identity.NewTokenService(store, shortLivedConfig(1)).WithClock(clock)

		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		// move past the access TTL but stay inside the refresh window
		mu.Lock()
		current = current.Add(2 * time.Hour)
		mu.Unlock()

		next, err := service.Renew(ctx, *pair)
		require.NoError(t, err)
		assert.NotEmpty(t, next.AccessToken)
	})

	t.Run("rejects an expired refresh token", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "stale", "stale@example.com")

		current := time.Now()
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}

		service := identity.NewTokenService(store, testConfig()).WithClock(clock)

		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		mu.Lock()
		current = current.Add(8 * 24 * time.Hour)
		mu.Unlock()

		_, err = service.Renew(ctx, *pair)
		assert.True(t, goerrors.Is(err, identity.ErrRefreshTokenInvalid))
	})

	t.Run("rejects a mismatched refresh token", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "mismatch", "mismatch@example.com")
		service := identity.NewTokenService(store, testConfig())

		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		bogus := *pair
		bogus.RefreshToken = "definitely-not-the-refresh-token"

		_, err = service.Renew(ctx, bogus)
		assert.True(t, goerrors.Is(err, identity.ErrRefreshTokenInvalid))
	})

	t.Run("rejects a tampered access token", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "tampered", "tampered@example.com")
		service := identity.NewTokenService(store, testConfig())

		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		bogus := *pair
		bogus.AccessToken = pair.AccessToken + "x"

		_, err = service.Renew(ctx, bogus)
		assertTextCode(t, err, identity.TextCodeTokenMalformed)
	})

	t.Run("rejects a token signed for another issuer", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "otherissuer", "otherissuer@example.com")

		otherCfg := testConfig()
		otherCfg.Issuer = "someone-else"
		other := identity.NewTokenService(store, otherCfg)

		pair, err := other.Issue(ctx, account)
		require.NoError(t, err)

		service := identity.NewTokenService(store, testConfig())
		_, err = service.Renew(ctx, *pair)
		assert.True(t, goerrors.Is(err, identity.ErrTokenMalformed))
	})

	t.Run("unknown account fails", func(t *testing.T) {
		store := identity.NewMemoryCredentialStore()
		account := seedAccount(t, store, "vanishing", "vanishing@example.com")
		service := identity.NewTokenService(store, testConfig())

		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		// a second store without the account simulates deletion
		empty := identity.NewMemoryCredentialStore()
		orphan := identity.NewTokenService(empty, testConfig())

		_, err = orphan.Renew(ctx, *pair)
		assert.True(t, goerrors.Is(err, identity.ErrAccountNotFound))
	})
}

func TestTokenService_ConcurrentRenew(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryCredentialStore()
	account := seedAccount(t, store, "racer", "racer@example.com")
	service := identity.NewTokenService(store, testConfig())

	pair, err := service.Issue(ctx, account)
	require.NoError(t, err)

	const contenders = 8

	var wg sync.WaitGroup
	results := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = service.Renew(ctx, *pair)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, goerrors.Is(err, identity.ErrRefreshTokenInvalid))
	}

	assert.Equal(t, 1, winners, "exactly one concurrent renewal must win")
}

func TestTokenService_Validate(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryCredentialStore()
	account := seedAccount(t, store, "validator", "validator@example.com")

	t.Run("expired token fails with the expiry error", func(t *testing.T) {
		past := time.Now().Add(-3 * time.Hour)
		service := identity.NewTokenService(store, shortLivedConfig(1)).WithClock(fixedClock(past))

		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		live := identity.NewTokenService(store, shortLivedConfig(1))
		_, err = live.Validate(pair.AccessToken)
		assert.True(t, goerrors.Is(err, identity.ErrTokenExpired))
	})

	t.Run("garbage input fails", func(t *testing.T) {
		service := identity.NewTokenService(store, testConfig())
		_, err := service.Validate("not-a-jwt")
		assertTextCode(t, err, identity.TextCodeTokenMalformed)
	})

	t.Run("wrong signing key fails", func(t *testing.T) {
		service := identity.NewTokenService(store, testConfig())
		pair, err := service.Issue(ctx, account)
		require.NoError(t, err)

		otherCfg := testConfig()
		otherCfg.SigningKey = "a-different-key"
		other := identity.NewTokenService(store, otherCfg)

		_, err = other.Validate(pair.AccessToken)
		assertTextCode(t, err, identity.TextCodeTokenMalformed)
	})
}

func TestGenerateRefreshToken(t *testing.T) {
	a, err := identity.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := identity.GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestHashOpaqueToken(t *testing.T) {
	h1 := identity.HashOpaqueToken("value-one")
	h2 := identity.HashOpaqueToken("value-one")
	h3 := identity.HashOpaqueToken("value-two")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, "value-one", h1)
}
