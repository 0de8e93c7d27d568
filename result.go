package identity

import (
	"github.com/goliatone/go-errors"
)

// Result is the uniform outcome of every orchestrator operation: a success
// flag, a human readable message, a status classification, and an optional
// payload. Expected authentication failures are carried here as typed
// errors; only collaborator faults propagate as plain Go errors.
type Result[T any] struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"status_code"`
	Payload    T      `json:"payload,omitempty"`

	cause *errors.Error
}

// Succeed builds a successful result.
func Succeed[T any](statusCode int, message string, payload T) Result[T] {
	return Result[T]{
		Success:    true,
		Message:    message,
		StatusCode: statusCode,
		Payload:    payload,
	}
}

// Failure builds a failed result from a typed error, lifting its message
// and status code. Untyped errors are wrapped as internal faults first.
func Failure[T any](err error) Result[T] {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "unexpected error").
			WithCode(errors.CodeInternal)
	}

	statusCode := richErr.Code
	if statusCode == 0 {
		statusCode = errors.CodeInternal
	}

	return Result[T]{
		Success:    false,
		Message:    richErr.Message,
		StatusCode: statusCode,
		cause:      richErr,
	}
}

// Err exposes the typed error behind a failed result, nil on success.
func (r Result[T]) Err() error {
	if r.cause == nil {
		return nil
	}
	return r.cause
}

// TextCode returns the machine readable code of the failure, if any.
func (r Result[T]) TextCode() string {
	if r.cause == nil {
		return ""
	}
	return r.cause.TextCode
}

// Is reports whether the failure matches the given sentinel error. Typed
// failures that restate a sentinel's text code also match, so callers get a
// stable answer whether the sentinel was returned directly or re-stated.
func (r Result[T]) Is(target error) bool {
	if r.cause == nil {
		return false
	}
	if errors.Is(r.cause, target) {
		return true
	}
	var rich *errors.Error
	if errors.As(target, &rich) && rich.TextCode != "" {
		return r.cause.TextCode == rich.TextCode
	}
	return false
}
