package onetimeinfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/onetimecode"
)

// PostgresRepository is the Postgres implementation of onetimecode.Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) onetimecode.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, code onetimecode.Code) error {
	query := `
		INSERT INTO onetime_codes (id, user_id, encrypted_refresh_token, redirect_to, state, used, expires_at, created_at)
		VALUES (:id, :user_id, :encrypted_refresh_token, :redirect_to, :state, :used, :expires_at, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, code)
	if err != nil {
		return errx.Wrap(err, "failed to save onetime code", errx.TypeInternal)
	}
	return nil
}

// FindAndConsume loads the code and marks it used in a single transaction,
// so two concurrent exchanges of the same code cannot both succeed: the
// row lock from SELECT ... FOR UPDATE serializes them.
func (r *PostgresRepository) FindAndConsume(ctx context.Context, id string) (*onetimecode.Code, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	var code onetimecode.Code
	err = tx.GetContext(ctx, &code, `SELECT * FROM onetime_codes WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, onetimecode.ErrInvalidCode()
		}
		return nil, errx.Wrap(err, "failed to find onetime code", errx.TypeInternal)
	}

	if code.Used {
		return nil, onetimecode.ErrAlreadyUsed()
	}

	if _, err := tx.ExecContext(ctx, `UPDATE onetime_codes SET used = true WHERE id = $1`, id); err != nil {
		return nil, errx.Wrap(err, "failed to mark onetime code used", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, errx.Wrap(err, "failed to commit transaction", errx.TypeInternal)
	}

	return &code, nil
}

func (r *PostgresRepository) CleanExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM onetime_codes WHERE expires_at < NOW() - INTERVAL '1 hour'`)
	if err != nil {
		return errx.Wrap(err, "failed to clean expired onetime codes", errx.TypeInternal)
	}
	return nil
}
