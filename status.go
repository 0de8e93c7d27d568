package identity

import (
	"github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_ACCOUNT_STATE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_ACCOUNT_STATE"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = errors.New("invalid account state transition", errors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from a terminal status.
var ErrTerminalState = errors.New("account state is terminal", errors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(errors.CodeConflict)

// ActorRef identifies who/what triggered a transition or auth event.
type ActorRef struct {
	ID   string
	Type string
}

var statusTransitions = map[AccountStatus][]AccountStatus{
	AccountStatusPending:   {AccountStatusActive, AccountStatusSuspended, AccountStatusArchived},
	AccountStatusActive:    {AccountStatusSuspended, AccountStatusArchived},
	AccountStatusSuspended: {AccountStatusActive, AccountStatusArchived},
	AccountStatusArchived:  {},
}

// CanTransition reports whether the lifecycle graph allows from -> to.
func CanTransition(from, to AccountStatus) bool {
	if from == "" {
		from = AccountStatusPending
	}
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error when from -> to is not allowed.
func ValidateTransition(from, to AccountStatus) error {
	if from == "" {
		from = AccountStatusPending
	}

	if from == AccountStatusArchived {
		return ErrTerminalState.WithMetadata(map[string]any{"from": from, "to": to})
	}

	if !CanTransition(from, to) {
		return ErrInvalidTransition.WithMetadata(map[string]any{"from": from, "to": to})
	}

	return nil
}

// statusAuthError blocks authentication flows for accounts whose lifecycle
// status forbids it. Pending accounts may still log in; only confirmation
// dependent features are gated elsewhere.
func statusAuthError(status AccountStatus) error {
	switch status {
	case "", AccountStatusPending, AccountStatusActive:
		return nil
	case AccountStatusSuspended:
		return ErrAccountSuspended
	default:
		return errors.New("account is not authenticatable", errors.CategoryAuth).
			WithCode(errors.CodeForbidden).
			WithMetadata(map[string]any{"status": status})
	}
}
