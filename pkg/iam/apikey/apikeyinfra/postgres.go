package apikeyinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// PostgresRepository is the Postgres implementation of apikey.Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) apikey.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, key apikey.APIKey) error {
	query := `
		INSERT INTO api_keys (
			id, key_hash, key_prefix, organization_id, user_id, name, description,
			scopes, access_level, is_active, legacy_key_plaintext, expires_at, last_used_at,
			created_at, updated_at, revoked_at
		) VALUES (
			:id, :key_hash, :key_prefix, :organization_id, :user_id, :name, :description,
			:scopes, :access_level, :is_active, :legacy_key_plaintext, :expires_at, :last_used_at,
			:created_at, :updated_at, :revoked_at
		)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			scopes = EXCLUDED.scopes,
			access_level = EXCLUDED.access_level,
			is_active = EXCLUDED.is_active,
			legacy_key_plaintext = EXCLUDED.legacy_key_plaintext,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at,
			revoked_at = EXCLUDED.revoked_at`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(key))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apikey.ErrDuplicate()
		}
		return errx.Wrap(err, "failed to save API key", errx.TypeInternal).WithDetail("key_id", key.ID.String())
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) (*apikey.APIKey, error) {
	var p apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE id = $1 AND organization_id = $2`
	err := r.db.GetContext(ctx, &p, query, id.String(), orgID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apikey.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find API key by id", errx.TypeInternal)
	}
	domainKey := toDomain(p)
	return &domainKey, nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, keyHash string) (*apikey.APIKey, error) {
	var p apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE key_hash = $1`
	err := r.db.GetContext(ctx, &p, query, keyHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apikey.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find API key by hash", errx.TypeInternal)
	}
	domainKey := toDomain(p)
	return &domainKey, nil
}

// FindByLegacyPlaintext looks up a key issued before hashing was enforced,
// by exact match against the legacy_key_plaintext column. RehashLegacy
// clears that column after such a match.
func (r *PostgresRepository) FindByLegacyPlaintext(ctx context.Context, rawKey string) (*apikey.APIKey, error) {
	var p apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE legacy_key_plaintext = $1`
	err := r.db.GetContext(ctx, &p, query, rawKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apikey.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find legacy API key", errx.TypeInternal)
	}
	domainKey := toDomain(p)
	return &domainKey, nil
}

func (r *PostgresRepository) FindByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	var rows []apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE organization_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, orgID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to find API keys by organization", errx.TypeInternal)
	}
	return toDomainSlice(rows), nil
}

func (r *PostgresRepository) FindActiveByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	var rows []apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE organization_id = $1 AND is_active = true ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, orgID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to find active API keys by organization", errx.TypeInternal)
	}
	return toDomainSlice(rows), nil
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID kernel.UserID, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	var rows []apiKeyPersistence
	query := `SELECT * FROM api_keys WHERE user_id = $1 AND organization_id = $2 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID.String(), orgID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to find API keys by user", errx.TypeInternal)
	}
	return toDomainSlice(rows), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND organization_id = $2`, id.String(), orgID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete API key", errx.TypeInternal)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on delete", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return apikey.ErrNotFound()
	}
	return nil
}

func (r *PostgresRepository) UpdateLastUsed(ctx context.Context, id kernel.APIKeyID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to update last_used_at for API key", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) RehashLegacy(ctx context.Context, id kernel.APIKeyID, keyHash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET key_hash = $1, legacy_key_plaintext = NULL WHERE id = $2`, keyHash, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to rehash legacy API key", errx.TypeInternal)
	}
	return nil
}

// apiKeyPersistence handles the DB-specific nullable/array column types
// sqlx cannot map directly onto the domain entity.
type apiKeyPersistence struct {
	ID                  string         `db:"id"`
	KeyHash             string         `db:"key_hash"`
	KeyPrefix           string         `db:"key_prefix"`
	OrganizationID      string         `db:"organization_id"`
	UserID              *string        `db:"user_id"`
	Name                string         `db:"name"`
	Description         sql.NullString `db:"description"`
	Scopes              pq.StringArray `db:"scopes"`
	AccessLevel         string         `db:"access_level"`
	IsActive            bool           `db:"is_active"`
	LegacyKeyPlaintext  *string        `db:"legacy_key_plaintext"`
	ExpiresAt           *time.Time     `db:"expires_at"`
	LastUsedAt          *time.Time     `db:"last_used_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
	RevokedAt           *time.Time     `db:"revoked_at"`
}

func toPersistence(key apikey.APIKey) apiKeyPersistence {
	var userID *string
	if key.UserID != nil {
		s := key.UserID.String()
		userID = &s
	}
	return apiKeyPersistence{
		ID:                 key.ID.String(),
		KeyHash:            key.KeyHash,
		KeyPrefix:          key.KeyPrefix,
		OrganizationID:     key.OrganizationID.String(),
		UserID:             userID,
		Name:               key.Name,
		Description:        sql.NullString{String: key.Description, Valid: key.Description != ""},
		Scopes:             key.Scopes,
		AccessLevel:        key.AccessLevel,
		IsActive:           key.IsActive,
		LegacyKeyPlaintext: key.LegacyPlaintext,
		ExpiresAt:          key.ExpiresAt,
		LastUsedAt:         key.LastUsedAt,
		CreatedAt:          key.CreatedAt,
		UpdatedAt:          key.UpdatedAt,
		RevokedAt:          key.RevokedAt,
	}
}

func toDomain(p apiKeyPersistence) apikey.APIKey {
	var userID *kernel.UserID
	if p.UserID != nil {
		id := kernel.NewUserID(*p.UserID)
		userID = &id
	}
	return apikey.APIKey{
		ID:              kernel.NewAPIKeyID(p.ID),
		KeyHash:         p.KeyHash,
		KeyPrefix:       p.KeyPrefix,
		OrganizationID:  kernel.NewOrganizationID(p.OrganizationID),
		UserID:          userID,
		Name:            p.Name,
		Description:     p.Description.String,
		Scopes:          p.Scopes,
		AccessLevel:     p.AccessLevel,
		IsActive:        p.IsActive,
		LegacyPlaintext: p.LegacyKeyPlaintext,
		ExpiresAt:       p.ExpiresAt,
		LastUsedAt:      p.LastUsedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		RevokedAt:       p.RevokedAt,
	}
}

func toDomainSlice(rows []apiKeyPersistence) []*apikey.APIKey {
	out := make([]*apikey.APIKey, len(rows))
	for i, p := range rows {
		k := toDomain(p)
		out[i] = &k
	}
	return out
}
