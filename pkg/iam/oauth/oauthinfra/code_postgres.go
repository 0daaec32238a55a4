package oauthinfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// CodePostgresRepository is the Postgres implementation of oauth.CodeRepository.
type CodePostgresRepository struct {
	db *sqlx.DB
}

func NewCodePostgresRepository(db *sqlx.DB) oauth.CodeRepository {
	return &CodePostgresRepository{db: db}
}

type codePersistence struct {
	Code                string         `db:"code"`
	ClientID            string         `db:"client_id"`
	UserID              string         `db:"user_id"`
	Scope               pq.StringArray `db:"scope"`
	RedirectURI         string         `db:"redirect_uri"`
	CodeChallenge       string         `db:"code_challenge"`
	CodeChallengeMethod string         `db:"code_challenge_method"`
	Used                bool           `db:"used"`
	ExpiresAt           sql.NullTime   `db:"expires_at"`
	CreatedAt           sql.NullTime   `db:"created_at"`
}

func toCodeDomain(p codePersistence) oauth.AuthorizationCode {
	return oauth.AuthorizationCode{
		Code:                p.Code,
		ClientID:            kernel.NewClientID(p.ClientID),
		UserID:              kernel.NewUserID(p.UserID),
		Scope:               p.Scope,
		RedirectURI:         p.RedirectURI,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: oauth.CodeChallengeMethod(p.CodeChallengeMethod),
		Used:                p.Used,
		ExpiresAt:           p.ExpiresAt.Time,
		CreatedAt:           p.CreatedAt.Time,
	}
}

func (r *CodePostgresRepository) Save(ctx context.Context, code oauth.AuthorizationCode) error {
	query := `
		INSERT INTO oauth_authorization_codes (
			code, client_id, user_id, scope, redirect_uri, code_challenge,
			code_challenge_method, used, expires_at, created_at
		) VALUES (
			:code, :client_id, :user_id, :scope, :redirect_uri, :code_challenge,
			:code_challenge_method, false, :expires_at, NOW()
		)`
	_, err := r.db.NamedExecContext(ctx, query, map[string]any{
		"code":                   code.Code,
		"client_id":              code.ClientID.String(),
		"user_id":                code.UserID.String(),
		"scope":                  pq.StringArray(code.Scope),
		"redirect_uri":           code.RedirectURI,
		"code_challenge":         code.CodeChallenge,
		"code_challenge_method":  string(code.CodeChallengeMethod),
		"expires_at":             code.ExpiresAt,
	})
	if err != nil {
		return errx.Wrap(err, "failed to save authorization code", errx.TypeInternal)
	}
	return nil
}

// FindAndConsume atomically marks a code used and returns its prior state,
// enforcing single-use redemption under row-level locking.
func (r *CodePostgresRepository) FindAndConsume(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	var p codePersistence
	err = tx.GetContext(ctx, &p, `SELECT * FROM oauth_authorization_codes WHERE code = $1 FOR UPDATE`, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, oauth.ErrInvalidGrant()
		}
		return nil, errx.Wrap(err, "failed to find authorization code", errx.TypeInternal)
	}
	if p.Used {
		return nil, oauth.ErrInvalidGrant()
	}

	if _, err := tx.ExecContext(ctx, `UPDATE oauth_authorization_codes SET used = true WHERE code = $1`, code); err != nil {
		return nil, errx.Wrap(err, "failed to mark authorization code used", errx.TypeInternal)
	}
	if err := tx.Commit(); err != nil {
		return nil, errx.Wrap(err, "failed to commit authorization code consumption", errx.TypeInternal)
	}

	result := toCodeDomain(p)
	return &result, nil
}

func (r *CodePostgresRepository) CleanExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_authorization_codes WHERE expires_at < NOW() - INTERVAL '1 hour'`)
	if err != nil {
		return errx.Wrap(err, "failed to clean expired authorization codes", errx.TypeInternal)
	}
	return nil
}
