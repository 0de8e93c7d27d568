package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeConfirmationTokenSQL marks a token used only while it is still
// live. A replay or a racing consumer matches zero rows.
var ConsumeConfirmationTokenSQL = `UPDATE "confirmation_tokens" AS "ctk"
SET
	"consumed_at" = ?
WHERE
	("ctk"."id" = ?)
AND ("ctk"."consumed_at" IS NULL)
AND ("ctk"."expires_at" > ?) RETURNING *;`

var ConsumeOtpChallengeSQL = `UPDATE "otp_challenges" AS "otp"
SET
	"consumed_at" = ?
WHERE
	("otp"."id" = ?)
AND ("otp"."consumed_at" IS NULL)
AND ("otp"."expires_at" > ?) RETURNING *;`

var TrackFailedOtpAttemptSQL = `UPDATE "otp_challenges" AS "otp"
SET
	"attempts" = "otp"."attempts" + 1
WHERE
	("otp"."id" = ?)
AND ("otp"."consumed_at" IS NULL) RETURNING *;`

type ConfirmationTokens interface {
	repository.Repository[*ConfirmationToken]

	FindActive(ctx context.Context, accountID uuid.UUID, purpose TokenPurpose, tokenHash string) (*ConfirmationToken, error)
	FindActiveTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose TokenPurpose, tokenHash string) (*ConfirmationToken, error)
	Consume(ctx context.Context, id uuid.UUID) error
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type confirmationTokens struct {
	repository.Repository[*ConfirmationToken]
	db *bun.DB
}

var _ ConfirmationTokens = (*confirmationTokens)(nil)

func NewConfirmationTokensRepository(db *bun.DB) ConfirmationTokens {
	repo := repository.NewRepository[*ConfirmationToken](db, repository.ModelHandlers[*ConfirmationToken]{
		NewRecord: func() *ConfirmationToken { return &ConfirmationToken{} },
		GetID: func(t *ConfirmationToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *ConfirmationToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &confirmationTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *confirmationTokens) FindActive(ctx context.Context, accountID uuid.UUID, purpose TokenPurpose, tokenHash string) (*ConfirmationToken, error) {
	return r.FindActiveTx(ctx, r.db, accountID, purpose, tokenHash)
}

func (r *confirmationTokens) FindActiveTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, purpose TokenPurpose, tokenHash string) (*ConfirmationToken, error) {
	record := &ConfirmationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.purpose = ?", purpose).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
					"purpose":    purpose,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *confirmationTokens) Consume(ctx context.Context, id uuid.UUID) error {
	return r.ConsumeTx(ctx, r.db, id)
}

func (r *confirmationTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := time.Now()
	res, err := r.Repository.RawTx(ctx, tx, ConsumeConfirmationTokenSQL, now, id.String(), now)
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

type OtpChallenges interface {
	repository.Repository[*OtpChallenge]

	FindActive(ctx context.Context, accountID uuid.UUID) (*OtpChallenge, error)
	FindActiveTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*OtpChallenge, error)
	Consume(ctx context.Context, id uuid.UUID) error
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	TrackFailedAttempt(ctx context.Context, id uuid.UUID) error
	TrackFailedAttemptTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type otpChallenges struct {
	repository.Repository[*OtpChallenge]
	db *bun.DB
}

var _ OtpChallenges = (*otpChallenges)(nil)

func NewOtpChallengesRepository(db *bun.DB) OtpChallenges {
	repo := repository.NewRepository[*OtpChallenge](db, repository.ModelHandlers[*OtpChallenge]{
		NewRecord: func() *OtpChallenge { return &OtpChallenge{} },
		GetID: func(o *OtpChallenge) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *OtpChallenge, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
	})

	return &otpChallenges{
		Repository: repo,
		db:         db,
	}
}

func (r *otpChallenges) FindActive(ctx context.Context, accountID uuid.UUID) (*OtpChallenge, error) {
	return r.FindActiveTx(ctx, r.db, accountID)
}

func (r *otpChallenges) FindActiveTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*OtpChallenge, error) {
	record := &OtpChallenge{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.consumed_at IS NULL").
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *otpChallenges) Consume(ctx context.Context, id uuid.UUID) error {
	return r.ConsumeTx(ctx, r.db, id)
}

func (r *otpChallenges) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := time.Now()
	res, err := r.Repository.RawTx(ctx, tx, ConsumeOtpChallengeSQL, now, id.String(), now)
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

func (r *otpChallenges) TrackFailedAttempt(ctx context.Context, id uuid.UUID) error {
	return r.TrackFailedAttemptTx(ctx, r.db, id)
}

func (r *otpChallenges) TrackFailedAttemptTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := r.Repository.RawTx(ctx, tx, TrackFailedOtpAttemptSQL, id.String())
	return err
}
