// Package identity implements a credential based authentication and
// session-token lifecycle engine: registration gated on email confirmation,
// password login with an optional one-time-password second factor, signed
// short-lived access tokens paired with opaque rotating refresh tokens, and
// a single-use token flow for email confirmation and password resets.
//
// Collaborators:
//   - CredentialStore owns durable account records, password hashing and
//     verification, and the per-account refresh-token slot. A Bun backed
//     implementation ships in this package; tests use the in-memory store.
//   - RoleDirectory is the source of truth for role names. RoleAssigner
//     reconciles requested roles against it idempotently.
//   - Notifier receives delivery requests (confirmation links, reset links,
//     OTP codes); transports are pluggable, an SMTP notifier is included.
//
// Orchestrator composes the pieces into the registration, login, refresh,
// and password-reset protocols. Every operation returns a Result carrying a
// success flag, message, status classification, and payload so callers never
// see an unhandled fault for an expected authentication outcome.
//
// Refresh tokens rotate on every issuance: exactly one value is live per
// account, stored as a sha256 hash, and renewal swaps it with a
// compare-and-swap so at most one of two concurrent renewals presenting the
// same token can succeed.
package identity
