package authinfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// PostgresTokenRepository is the Postgres implementation of auth.TokenRepository.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

func NewPostgresTokenRepository(db *sqlx.DB) auth.TokenRepository {
	return &PostgresTokenRepository{db: db}
}

func (r *PostgresTokenRepository) SaveRefreshToken(ctx context.Context, token auth.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, token_hash, user_id, organization_id, platform, expires_at, created_at, is_revoked)
		VALUES (:id, :token_hash, :user_id, :organization_id, :platform, :expires_at, :created_at, :is_revoked)`
	_, err := r.db.NamedExecContext(ctx, query, token)
	if err != nil {
		return errx.Wrap(err, "failed to save refresh token", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresTokenRepository) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var t auth.RefreshToken
	err := r.db.GetContext(ctx, &t, `SELECT * FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrInvalidRefreshToken()
		}
		return nil, errx.Wrap(err, "failed to find refresh token", errx.TypeInternal)
	}
	return &t, nil
}

func (r *PostgresTokenRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET is_revoked = true WHERE id = $1`, id)
	if err != nil {
		return errx.Wrap(err, "failed to revoke refresh token", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresTokenRepository) RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET is_revoked = true WHERE user_id = $1`, userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to revoke user refresh tokens", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresTokenRepository) CleanExpiredTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return errx.Wrap(err, "failed to clean expired refresh tokens", errx.TypeInternal)
	}
	return nil
}
