package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
)

// RegisterPayload carries a registration request.
type RegisterPayload struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone_number,omitempty"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

// RegistrationResponse is the payload of a successful registration: the new
// account, the confirmation token for the Notifier, and the role outcome.
type RegistrationResponse struct {
	Account           *Account         `json:"account"`
	ConfirmationToken *IssuedToken     `json:"confirmation_token"`
	Roles             *RoleAssignment  `json:"roles,omitempty"`
	Delivery          *DeliveryRequest `json:"delivery,omitempty"`
}

// LoginOutcome is the payload of a successful login: either an issued
// session pair, or a pending second factor whose code went to the Notifier.
type LoginOutcome struct {
	TwoFactorPending bool             `json:"two_factor_pending"`
	Otp              *DeliveryRequest `json:"otp,omitempty"`
	Pair             *TokenPair       `json:"pair,omitempty"`
}

// ResetPasswordPayload carries the reset-password finalization request.
type ResetPasswordPayload struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Orchestrator composes the credential store, token service, two factor
// challenge, confirmation issuer, and role assigner into the registration,
// login, refresh, and password-reset protocols.
type Orchestrator struct {
	store         CredentialStore
	tokens        TokenService
	confirmations ConfirmationTokenIssuer
	challenge     *TwoFactorChallenge
	roles         *RoleAssigner
	notifier      Notifier
	activity      ActivitySink
	logger        Logger
	useHashid     bool
	phoneRegion   string
}

// NewOrchestrator wires the authentication engine.
func NewOrchestrator(
	store CredentialStore,
	tokens TokenService,
	confirmations ConfirmationTokenIssuer,
	challenge *TwoFactorChallenge,
	roles *RoleAssigner,
) *Orchestrator {
	return &Orchestrator{
		store:         store,
		tokens:        tokens,
		confirmations: confirmations,
		challenge:     challenge,
		roles:         roles,
		notifier:      noopNotifier{},
		activity:      noopActivitySink{},
		logger:        defLogger{},
		phoneRegion:   "US",
	}
}

func (o *Orchestrator) WithLogger(logger Logger) *Orchestrator {
	if logger != nil {
		o.logger = logger
	}
	return o
}

// WithNotifier configures the delivery collaborator.
func (o *Orchestrator) WithNotifier(notifier Notifier) *Orchestrator {
	o.notifier = normalizeNotifier(notifier)
	return o
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (o *Orchestrator) WithActivitySink(sink ActivitySink) *Orchestrator {
	o.activity = normalizeActivitySink(sink)
	return o
}

// WithHashidAccountIDs derives account IDs deterministically from the
// registration email.
func (o *Orchestrator) WithHashidAccountIDs() *Orchestrator {
	o.useHashid = true
	return o
}

// WithPhoneRegion sets the default region used to parse phone numbers.
func (o *Orchestrator) WithPhoneRegion(region string) *Orchestrator {
	if region != "" {
		o.phoneRegion = region
	}
	return o
}

// Register creates an unconfirmed account, reconciles the requested roles,
// and produces an email-confirmation token plus its delivery request.
func (o *Orchestrator) Register(ctx context.Context, payload RegisterPayload) Result[*RegistrationResponse] {
	if _, err := o.store.FindByUsername(ctx, payload.Username); err == nil {
		return Failure[*RegistrationResponse](ErrAccountExists)
	} else if !errors.IsNotFound(err) {
		return Failure[*RegistrationResponse](errors.Wrap(err, errors.CategoryInternal, "failed to check username availability"))
	}

	account := &Account{
		Username: payload.Username,
		Email:    payload.Email,
		Status:   AccountStatusPending,
	}

	if payload.Phone != "" {
		phone, err := o.normalizePhone(payload.Phone)
		if err != nil {
			return Failure[*RegistrationResponse](err)
		}
		account.Phone = phone
	}

	if o.useHashid {
		if id, err := hashid.NewUUID(payload.Email); err == nil {
			account.ID = id
		}
	}

	created, err := o.store.Create(ctx, account, payload.Password)
	if err != nil {
		// surface the underlying rejection, e.g. a password policy violation
		return Failure[*RegistrationResponse](
			errors.Wrap(err, ErrCreationFailed.Category, ErrCreationFailed.Message).
				WithTextCode(ErrCreationFailed.TextCode).
				WithCode(ErrCreationFailed.Code),
		)
	}

	assignment, err := o.roles.AssignRoles(ctx, payload.Roles, created)
	if err != nil {
		return Failure[*RegistrationResponse](err)
	}

	token, err := o.confirmations.Generate(ctx, created, PurposeEmailConfirm)
	if err != nil {
		return Failure[*RegistrationResponse](err)
	}

	delivery := NewEmailConfirmationRequest(created, token)
	o.deliver(ctx, delivery)

	o.emitAuthEvent(ctx, ActivityEventRegistration, actorFromAccount(created), created.ID.String(), map[string]any{
		"username": created.Username,
	})

	return Succeed(201, "Account created successfully", &RegistrationResponse{
		Account:           created,
		ConfirmationToken: token,
		Roles:             assignment,
		Delivery:          &delivery,
	})
}

// ConfirmEmail consumes a confirmation token and flips the account's
// emailConfirmed flag exactly once. Replays fail.
func (o *Orchestrator) ConfirmEmail(ctx context.Context, token, email string) Result[*Account] {
	account, err := o.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return Failure[*Account](ErrAccountNotFound)
		}
		return Failure[*Account](errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account"))
	}

	if err := o.confirmations.Consume(ctx, account, PurposeEmailConfirm, token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return Failure[*Account](ErrInvalidToken)
		}
		return Failure[*Account](err)
	}

	if err := o.store.MarkEmailConfirmed(ctx, account.ID); err != nil {
		return Failure[*Account](errors.Wrap(err, errors.CategoryInternal, "failed to mark email confirmed"))
	}

	account.EmailConfirmed = true
	if CanTransition(account.Status, AccountStatusActive) {
		account.Status = AccountStatusActive
	}

	o.emitAuthEvent(ctx, ActivityEventEmailConfirmed, actorFromAccount(account), account.ID.String(), nil)

	return Succeed(200, "Email confirmed successfully", account)
}

// Login verifies credentials. Accounts without the second factor get a
// session pair directly; two-factor accounts get an OTP dispatch and no
// session until LoginWithOtp.
func (o *Orchestrator) Login(ctx context.Context, username, password string) Result[*LoginOutcome] {
	account, err := o.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFound(err) {
			o.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"username": username,
			})
			return Failure[*LoginOutcome](ErrAccountNotFound)
		}
		return Failure[*LoginOutcome](errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account"))
	}

	if err := statusAuthError(account.Status); err != nil {
		o.logger.Warn("login blocked due to account status %q", account.Status)
		return Failure[*LoginOutcome](err)
	}

	if err := o.store.VerifyPassword(ctx, account, password); err != nil {
		o.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromAccount(account), account.ID.String(), map[string]any{
			"username": username,
		})

		if errors.Is(err, ErrTooManyLoginAttempts) {
			return Failure[*LoginOutcome](ErrTooManyLoginAttempts)
		}
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return Failure[*LoginOutcome](ErrInvalidCredentials)
		}
		return Failure[*LoginOutcome](errors.Wrap(err, errors.CategoryInternal, "failed to verify credentials"))
	}

	if account.TwoFactorEnabled {
		code, err := o.challenge.Generate(ctx, account)
		if err != nil {
			return Failure[*LoginOutcome](err)
		}

		delivery := NewLoginOtpRequest(account, code)
		o.deliver(ctx, delivery)

		o.emitAuthEvent(ctx, ActivityEventOtpIssued, actorFromAccount(account), account.ID.String(), nil)

		return Succeed(200, "We have sent an OTP to your email", &LoginOutcome{
			TwoFactorPending: true,
			Otp:              &delivery,
		})
	}

	pair, err := o.tokens.Issue(ctx, account)
	if err != nil {
		return Failure[*LoginOutcome](err)
	}

	o.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromAccount(account), account.ID.String(), map[string]any{
		"username": username,
	})

	return Succeed(200, "Token created", &LoginOutcome{Pair: pair})
}

// LoginWithOtp completes a pending two-factor login. Each generated code
// succeeds at most once.
func (o *Orchestrator) LoginWithOtp(ctx context.Context, code, username string) Result[*TokenPair] {
	account, err := o.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFound(err) {
			return Failure[*TokenPair](ErrInvalidOtp)
		}
		return Failure[*TokenPair](errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account"))
	}

	if !account.TwoFactorEnabled {
		return Failure[*TokenPair](ErrTwoFactorNotEnabled)
	}

	if err := o.challenge.Validate(ctx, account, code); err != nil {
		if errors.Is(err, ErrInvalidOtp) {
			return Failure[*TokenPair](ErrInvalidOtp)
		}
		return Failure[*TokenPair](err)
	}

	pair, err := o.tokens.Issue(ctx, account)
	if err != nil {
		return Failure[*TokenPair](err)
	}

	o.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromAccount(account), account.ID.String(), map[string]any{
		"username": username,
		"factor":   "otp",
	})

	return Succeed(200, "Token created", pair)
}

// Renew rotates a session pair. At most one of two concurrent renewals
// presenting the same refresh token succeeds.
func (o *Orchestrator) Renew(ctx context.Context, pair TokenPair) Result[*TokenPair] {
	next, err := o.tokens.Renew(ctx, pair)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			return Failure[*TokenPair](ErrAccountNotFound)
		case errors.Is(err, ErrRefreshTokenInvalid), HasTextCode(err, TextCodeTokenMalformed):
			return Failure[*TokenPair](ErrRefreshTokenInvalid)
		}
		return Failure[*TokenPair](err)
	}

	o.emitAuthEvent(ctx, ActivityEventTokenRenewed, ActorRef{Type: "user"}, "", nil)

	return Succeed(200, "Token renewed", next)
}

// ForgotPassword starts the reset flow. The response is uniform whether or
// not the email maps to an account, so callers cannot probe for existence.
func (o *Orchestrator) ForgotPassword(ctx context.Context, email string) Result[*DeliveryRequest] {
	const message = "If the address is registered, a password change request has been sent"

	account, err := o.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return Succeed[*DeliveryRequest](200, message, nil)
		}
		return Failure[*DeliveryRequest](errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account"))
	}

	token, err := o.confirmations.Generate(ctx, account, PurposePasswordReset)
	if err != nil {
		return Failure[*DeliveryRequest](err)
	}

	delivery := NewPasswordResetRequest(account, token)
	o.deliver(ctx, delivery)

	o.emitAuthEvent(ctx, ActivityEventPasswordResetRequest, actorFromAccount(account), account.ID.String(), nil)

	return Succeed(200, message, &delivery)
}

// ResetPassword finalizes a reset: the token is consumed, the new password
// replaces the old one, and any replay of the token fails.
func (o *Orchestrator) ResetPassword(ctx context.Context, payload ResetPasswordPayload) Result[*Account] {
	if payload.Password != payload.ConfirmPassword {
		return Failure[*Account](ErrPasswordMismatch)
	}

	account, err := o.store.FindByEmail(ctx, payload.Email)
	if err != nil {
		if errors.IsNotFound(err) {
			return Failure[*Account](ErrAccountNotFound)
		}
		return Failure[*Account](errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account"))
	}

	if err := o.confirmations.Consume(ctx, account, PurposePasswordReset, payload.Token); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return Failure[*Account](ErrInvalidToken)
		}
		return Failure[*Account](err)
	}

	if err := o.store.UpdatePassword(ctx, account.ID, payload.Password); err != nil {
		return Failure[*Account](errors.Wrap(err, errors.CategoryValidation, "invalid new password provided"))
	}

	o.emitAuthEvent(ctx, ActivityEventPasswordResetSuccess, actorFromAccount(account), account.ID.String(), nil)

	return Succeed(200, "Password reset successfully", account)
}

func (o *Orchestrator) normalizePhone(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(raw, o.phoneRegion)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryValidation, "invalid phone number").
			WithCode(errors.CodeBadRequest)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", errors.New("invalid phone number", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

func (o *Orchestrator) deliver(ctx context.Context, req DeliveryRequest) {
	if err := normalizeNotifier(o.notifier).Deliver(ctx, req); err != nil {
		o.logger.Warn("notifier delivery error (%s): %v", req.Kind, err)
	}
}

func (o *Orchestrator) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	sink := normalizeActivitySink(o.activity)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		o.logger.Warn("activity sink record error: %v", err)
	}
}

func actorFromAccount(account *Account) ActorRef {
	if account == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   account.ID.String(),
		Type: "user",
	}
}
