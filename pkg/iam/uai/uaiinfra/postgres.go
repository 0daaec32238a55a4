package uaiinfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/uai"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// PostgresRepository is the Postgres implementation of uai.Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) uai.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindLinkByHash(ctx context.Context, method, identifierHash string) (*uai.CredentialLink, error) {
	var link uai.CredentialLink
	query := `SELECT * FROM uai_credential_links WHERE method = $1 AND identifier_hash = $2`
	err := r.db.GetContext(ctx, &link, query, method, identifierHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, uai.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find credential link", errx.TypeInternal)
	}
	return &link, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*uai.Identity, error) {
	var identity uai.Identity
	query := `SELECT * FROM uai_identities WHERE primary_email = $1`
	err := r.db.GetContext(ctx, &identity, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, uai.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find identity by email", errx.TypeInternal)
	}
	return &identity, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id kernel.UniversalID) (*uai.Identity, error) {
	var identity uai.Identity
	query := `SELECT * FROM uai_identities WHERE id = $1`
	err := r.db.GetContext(ctx, &identity, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, uai.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find identity by id", errx.TypeInternal)
	}
	return &identity, nil
}

func (r *PostgresRepository) CreateWithLink(ctx context.Context, identity uai.Identity, link uai.CredentialLink) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO uai_identities (id, primary_email, user_id, created_at, last_seen_at)
		VALUES ($1, $2, $3, NOW(), NOW())`,
		identity.ID.String(), identity.PrimaryEmail, nullableUserID(identity.UserID))
	if err != nil {
		return errx.Wrap(err, "failed to create identity", errx.TypeInternal)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO uai_credential_links (id, universal_id, method, identifier_hash, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		link.ID, identity.ID.String(), link.Method, link.IdentifierHash)
	if err != nil {
		return errx.Wrap(err, "failed to create credential link", errx.TypeInternal)
	}

	return tx.Commit()
}

func (r *PostgresRepository) LinkCredential(ctx context.Context, link uai.CredentialLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uai_credential_links (id, universal_id, method, identifier_hash, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		link.ID, link.UniversalID.String(), link.Method, link.IdentifierHash)
	if err != nil {
		return errx.Wrap(err, "failed to link credential", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) TouchLink(ctx context.Context, method, identifierHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE uai_credential_links SET last_seen_at = NOW() WHERE method = $1 AND identifier_hash = $2`,
		method, identifierHash)
	if err != nil {
		return errx.Wrap(err, "failed to touch credential link", errx.TypeInternal)
	}
	return nil
}

func nullableUserID(id *kernel.UserID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}
