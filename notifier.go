package identity

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// DeliveryKind classifies a delivery request.
type DeliveryKind string

const (
	DeliveryEmailConfirmation DeliveryKind = "email.confirmation"
	DeliveryPasswordReset     DeliveryKind = "email.password_reset"
	DeliveryLoginOtp          DeliveryKind = "email.login_otp"
)

// DeliveryRequest is the payload the engine hands to the Notifier. The
// engine builds content; transports decide how it reaches the account.
type DeliveryRequest struct {
	Kind      DeliveryKind   `json:"kind"`
	To        string         `json:"to"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Token     string         `json:"token,omitempty"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notifier delivers confirmation links, reset links, and OTP codes.
type Notifier interface {
	Deliver(ctx context.Context, req DeliveryRequest) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, req DeliveryRequest) error

// Deliver implements Notifier.
func (f NotifierFunc) Deliver(ctx context.Context, req DeliveryRequest) error {
	if f == nil {
		return nil
	}
	return f(ctx, req)
}

type noopNotifier struct{}

func (noopNotifier) Deliver(context.Context, DeliveryRequest) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// LogNotifier prints delivery requests instead of sending them. Meant for
// development setups without a mail transport.
type LogNotifier struct {
	Logger Logger
}

// Deliver implements Notifier.
func (n LogNotifier) Deliver(_ context.Context, req DeliveryRequest) error {
	logger := n.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("delivery request (%s) to=%s subject=%q body=%q", req.Kind, req.To, req.Subject, req.Body)
	return nil
}

// SMTPNotifier sends delivery requests as plain-text email.
type SMTPNotifier struct {
	cfg SMTPConfig
}

var _ Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier creates a Notifier over the configured SMTP endpoint.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Deliver implements Notifier.
func (n *SMTPNotifier) Deliver(_ context.Context, req DeliveryRequest) error {
	if n.cfg.Host == "" {
		return errors.New("smtp host is not configured", errors.CategoryBadInput)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", req.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", req.Subject)
	msg.WriteString("\r\n")
	msg.WriteString(req.Body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{req.To}, []byte(msg.String())); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send notification email")
	}

	return nil
}

// NewEmailConfirmationRequest builds the delivery payload for a freshly
// registered account.
func NewEmailConfirmationRequest(account *Account, token *IssuedToken) DeliveryRequest {
	return DeliveryRequest{
		Kind:      DeliveryEmailConfirmation,
		To:        account.Email,
		Subject:   "Confirmation email link",
		Body:      fmt.Sprintf("Confirm your email address using token %s", token.Value),
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Metadata:  map[string]any{"username": account.Username},
	}
}

// NewPasswordResetRequest builds the delivery payload for a reset flow.
func NewPasswordResetRequest(account *Account, token *IssuedToken) DeliveryRequest {
	return DeliveryRequest{
		Kind:      DeliveryPasswordReset,
		To:        account.Email,
		Subject:   "Password reset link",
		Body:      fmt.Sprintf("Reset your password using token %s", token.Value),
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Metadata:  map[string]any{"username": account.Username},
	}
}

// NewLoginOtpRequest builds the delivery payload for a login second factor.
func NewLoginOtpRequest(account *Account, code *IssuedToken) DeliveryRequest {
	return DeliveryRequest{
		Kind:      DeliveryLoginOtp,
		To:        account.Email,
		Subject:   "OTP confirmation",
		Body:      fmt.Sprintf("Your one-time code is %s", code.Value),
		Token:     code.Value,
		ExpiresAt: code.ExpiresAt,
		Metadata:  map[string]any{"username": account.Username},
	}
}
