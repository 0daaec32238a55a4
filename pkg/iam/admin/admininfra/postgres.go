package admininfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin"
)

// PostgresRepository is the Postgres implementation of admin.Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) admin.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*admin.BypassAccount, error) {
	var account admin.BypassAccount
	query := `SELECT * FROM bypass_accounts WHERE email = $1`
	err := r.db.GetContext(ctx, &account, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, admin.ErrInvalidCredentials()
		}
		return nil, errx.Wrap(err, "failed to find bypass account", errx.TypeInternal)
	}
	return &account, nil
}

func (r *PostgresRepository) UpdateLastUsed(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bypass_accounts SET last_used_at = NOW() WHERE email = $1`, email)
	if err != nil {
		return errx.Wrap(err, "failed to update bypass account last_used_at", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM bypass_accounts WHERE disabled = false`)
	if err != nil {
		return 0, errx.Wrap(err, "failed to count bypass accounts", errx.TypeInternal)
	}
	return count, nil
}

func (r *PostgresRepository) Seed(ctx context.Context, account admin.BypassAccount) error {
	query := `
		INSERT INTO bypass_accounts (email, password_hash, totp_secret, disabled, created_at)
		VALUES (:email, :password_hash, :totp_secret, :disabled, NOW())
		ON CONFLICT (email) DO NOTHING`
	_, err := r.db.NamedExecContext(ctx, query, account)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil
		}
		return errx.Wrap(err, "failed to seed bypass account", errx.TypeInternal)
	}
	return nil
}
