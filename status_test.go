package identity_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     identity.AccountStatus
		to       identity.AccountStatus
		expected bool
	}{
		{"pending to active", identity.AccountStatusPending, identity.AccountStatusActive, true},
		{"pending to suspended", identity.AccountStatusPending, identity.AccountStatusSuspended, true},
		{"pending to archived", identity.AccountStatusPending, identity.AccountStatusArchived, true},
		{"active to suspended", identity.AccountStatusActive, identity.AccountStatusSuspended, true},
		{"active to archived", identity.AccountStatusActive, identity.AccountStatusArchived, true},
		{"active back to pending", identity.AccountStatusActive, identity.AccountStatusPending, false},
		{"suspended to active", identity.AccountStatusSuspended, identity.AccountStatusActive, true},
		{"archived is terminal", identity.AccountStatusArchived, identity.AccountStatusActive, false},
		{"empty status behaves as pending", "", identity.AccountStatusActive, true},
		{"no self transition", identity.AccountStatusActive, identity.AccountStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, identity.CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidateTransition(t *testing.T) {
	t.Run("allowed transition passes", func(t *testing.T) {
		assert.NoError(t, identity.ValidateTransition(identity.AccountStatusPending, identity.AccountStatusActive))
	})

	t.Run("disallowed transition is typed", func(t *testing.T) {
		err := identity.ValidateTransition(identity.AccountStatusActive, identity.AccountStatusPending)
		assert.True(t, goerrors.Is(err, identity.ErrInvalidTransition))
	})

	t.Run("leaving archived is terminal", func(t *testing.T) {
		err := identity.ValidateTransition(identity.AccountStatusArchived, identity.AccountStatusActive)
		assert.True(t, goerrors.Is(err, identity.ErrTerminalState))
	})
}
