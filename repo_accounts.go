package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var MarkEmailConfirmedSQL = `UPDATE "accounts" AS "acc"
SET
	"is_email_confirmed" = TRUE,
	"status" = CASE WHEN "acc"."status" = 'pending' THEN 'active' ELSE "acc"."status" END
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

var SetRefreshTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"refresh_token_hash" = ?,
	"refresh_token_expires_at" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// SwapRefreshTokenSQL rotates the refresh slot only when the stored hash
// still matches the expected one. Concurrent renewals race on this predicate
// and the database lets exactly one through.
var SwapRefreshTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"refresh_token_hash" = ?,
	"refresh_token_expires_at" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
)
AND (
	"acc"."refresh_token_hash" = ?
) RETURNING *;`

type Accounts interface {
	repository.Repository[*Account]

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	MarkEmailConfirmed(ctx context.Context, id uuid.UUID) error
	MarkEmailConfirmedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	SetRefreshToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	SetRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, expiresAt time.Time) error
	SwapRefreshToken(ctx context.Context, id uuid.UUID, expectedHash, newHash string, expiresAt time.Time) (bool, error)
	SwapRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, expectedHash, newHash string, expiresAt time.Time) (bool, error)

	GetRoles(ctx context.Context, id uuid.UUID) ([]string, error)
	AssignRole(ctx context.Context, id uuid.UUID, role string) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	options := resolveAccountIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *accounts) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accounts) MarkEmailConfirmed(ctx context.Context, id uuid.UUID) error {
	return a.MarkEmailConfirmedTx(ctx, a.db, id)
}

func (a *accounts) MarkEmailConfirmedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, tx, MarkEmailConfirmedSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetAccountPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) SetRefreshToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return a.SetRefreshTokenTx(ctx, a.db, id, hash, expiresAt)
}

func (a *accounts) SetRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, expiresAt time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, SetRefreshTokenSQL, hash, expiresAt, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accounts) SwapRefreshToken(ctx context.Context, id uuid.UUID, expectedHash, newHash string, expiresAt time.Time) (bool, error) {
	return a.SwapRefreshTokenTx(ctx, a.db, id, expectedHash, newHash, expiresAt)
}

func (a *accounts) SwapRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, expectedHash, newHash string, expiresAt time.Time) (bool, error) {
	res, err := a.Repository.RawTx(ctx, tx, SwapRefreshTokenSQL, newHash, expiresAt, id.String(), expectedHash)
	if err != nil {
		return false, err
	}

	return len(res) > 0, nil
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	// NOTE: Updating using the ORM wont reset login_attempt_at and
	// login_attempts, so we go raw.
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("acc".id = ?)
			AND "acc"."deleted_at" IS NULL;
	`, loggedInAt, account.ID).Exec(ctx)

	return err
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(account.ID.String()),
	}

	record := &Account{}
	record.ID = account.ID
	record.LoginAttempts = account.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, record, criteria...)

	return err
}

func (a *accounts) GetRoles(ctx context.Context, id uuid.UUID) ([]string, error) {
	var rows []*AccountRole
	err := a.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.account_id = ?", id).
		Order("role ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}

	return roles, nil
}

func (a *accounts) AssignRole(ctx context.Context, id uuid.UUID, role string) error {
	row := &AccountRole{
		AccountID: id,
		Role:      role,
	}

	_, err := a.db.NewInsert().
		Model(row).
		On("CONFLICT (account_id, role) DO NOTHING").
		Exec(ctx)

	return err
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
