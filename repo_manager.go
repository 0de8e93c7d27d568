package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	ConfirmationTokens() ConfirmationTokens
	OtpChallenges() OtpChallenges
}

type mngr struct {
	db            *bun.DB
	accounts      Accounts
	confirmations ConfirmationTokens
	otps          OtpChallenges
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		accounts:      NewAccountsRepository(db),
		confirmations: NewConfirmationTokensRepository(db),
		otps:          NewOtpChallengesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.confirmations == nil {
		return errors.New("repository confirmationTokens should be initialized")
	}

	if m.otps == nil {
		return errors.New("repository otpChallenges should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) ConfirmationTokens() ConfirmationTokens {
	return m.confirmations
}

func (m mngr) OtpChallenges() OtpChallenges {
	return m.otps
}

// CreateTables registers models and creates the backing tables. Meant for
// examples and tests, production schemas run migrations.
func CreateTables(ctx context.Context, db *bun.DB) error {
	db.RegisterModel((*Account)(nil), (*ConfirmationToken)(nil), (*OtpChallenge)(nil), (*AccountRole)(nil))

	models := []any{
		(*Account)(nil),
		(*ConfirmationToken)(nil),
		(*OtpChallenge)(nil),
		(*AccountRole)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
