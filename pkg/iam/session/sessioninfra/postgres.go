package sessioninfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/session"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// PostgresRepository is the Postgres implementation of session.Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) session.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, s session.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, platform, token_hash, ip_address, user_agent, expires_at, created_at, last_activity, revoked_at)
		VALUES (:id, :user_id, :platform, :token_hash, :ip_address, :user_agent, :expires_at, :created_at, :last_activity, :revoked_at)`
	_, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return errx.Wrap(err, "failed to save session", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id kernel.SessionID) (*session.Session, error) {
	var s session.Session
	err := r.db.GetContext(ctx, &s, `SELECT * FROM sessions WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find session", errx.TypeInternal)
	}
	return &s, nil
}

func (r *PostgresRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	var s session.Session
	err := r.db.GetContext(ctx, &s, `SELECT * FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find session by token hash", errx.TypeInternal)
	}
	return &s, nil
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID kernel.UserID) ([]*session.Session, error) {
	var sessions []*session.Session
	err := r.db.SelectContext(ctx, &sessions, `SELECT * FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find sessions by user", errx.TypeInternal)
	}
	return sessions, nil
}

func (r *PostgresRepository) FindActiveByUserAndPlatform(ctx context.Context, userID kernel.UserID, platform kernel.Platform) (*session.Session, error) {
	var s session.Session
	err := r.db.GetContext(ctx, &s, `
		SELECT * FROM sessions
		WHERE user_id = $1 AND platform = $2 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC LIMIT 1`, userID.String(), platform)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find active session", errx.TypeInternal)
	}
	return &s, nil
}

func (r *PostgresRepository) UpdateActivity(ctx context.Context, id kernel.SessionID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_activity = NOW() WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to update session activity", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id kernel.SessionID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to revoke session", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID kernel.UserID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to revoke user sessions", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) CleanExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < NOW() - INTERVAL '30 days'`)
	if err != nil {
		return errx.Wrap(err, "failed to clean expired sessions", errx.TypeInternal)
	}
	return nil
}
