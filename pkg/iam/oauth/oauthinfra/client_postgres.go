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

// ClientPostgresRepository is the Postgres implementation of oauth.ClientRepository.
type ClientPostgresRepository struct {
	db *sqlx.DB
}

func NewClientPostgresRepository(db *sqlx.DB) oauth.ClientRepository {
	return &ClientPostgresRepository{db: db}
}

type clientPersistence struct {
	ClientID            string         `db:"client_id"`
	ClientName          string         `db:"client_name"`
	ClientType          string         `db:"client_type"`
	ClientSecretHash    *string        `db:"client_secret_hash"`
	RequirePKCE         bool           `db:"require_pkce"`
	AllowedRedirectURIs pq.StringArray `db:"allowed_redirect_uris"`
	AllowedScopes       pq.StringArray `db:"allowed_scopes"`
	DefaultScopes       pq.StringArray `db:"default_scopes"`
	Status              string         `db:"status"`
	CreatedAt           sql.NullTime   `db:"created_at"`
	UpdatedAt           sql.NullTime   `db:"updated_at"`
}

func toClientPersistence(c oauth.Client) clientPersistence {
	return clientPersistence{
		ClientID:            c.ClientID.String(),
		ClientName:          c.ClientName,
		ClientType:          string(c.ClientType),
		ClientSecretHash:    c.ClientSecretHash,
		RequirePKCE:         c.RequirePKCE,
		AllowedRedirectURIs: c.AllowedRedirectURIs,
		AllowedScopes:       c.AllowedScopes,
		DefaultScopes:       c.DefaultScopes,
		Status:              c.Status,
	}
}

func toClientDomain(p clientPersistence) oauth.Client {
	return oauth.Client{
		ClientID:            kernel.NewClientID(p.ClientID),
		ClientName:          p.ClientName,
		ClientType:          oauth.ClientType(p.ClientType),
		ClientSecretHash:    p.ClientSecretHash,
		RequirePKCE:         p.RequirePKCE,
		AllowedRedirectURIs: p.AllowedRedirectURIs,
		AllowedScopes:       p.AllowedScopes,
		DefaultScopes:       p.DefaultScopes,
		Status:              p.Status,
		CreatedAt:           p.CreatedAt.Time,
		UpdatedAt:           p.UpdatedAt.Time,
	}
}

func (r *ClientPostgresRepository) Save(ctx context.Context, client oauth.Client) error {
	query := `
		INSERT INTO oauth_clients (
			client_id, client_name, client_type, client_secret_hash, require_pkce,
			allowed_redirect_uris, allowed_scopes, default_scopes, status, created_at, updated_at
		) VALUES (
			:client_id, :client_name, :client_type, :client_secret_hash, :require_pkce,
			:allowed_redirect_uris, :allowed_scopes, :default_scopes, :status, NOW(), NOW()
		)
		ON CONFLICT (client_id) DO UPDATE SET
			client_name = EXCLUDED.client_name,
			allowed_redirect_uris = EXCLUDED.allowed_redirect_uris,
			allowed_scopes = EXCLUDED.allowed_scopes,
			default_scopes = EXCLUDED.default_scopes,
			status = EXCLUDED.status,
			updated_at = NOW()`
	_, err := r.db.NamedExecContext(ctx, query, toClientPersistence(client))
	if err != nil {
		return errx.Wrap(err, "failed to save oauth client", errx.TypeInternal)
	}
	return nil
}

func (r *ClientPostgresRepository) FindByID(ctx context.Context, id kernel.ClientID) (*oauth.Client, error) {
	var p clientPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM oauth_clients WHERE client_id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, oauth.ErrClientNotFound()
		}
		return nil, errx.Wrap(err, "failed to find oauth client", errx.TypeInternal)
	}
	c := toClientDomain(p)
	return &c, nil
}

func (r *ClientPostgresRepository) List(ctx context.Context) ([]*oauth.Client, error) {
	var rows []clientPersistence
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM oauth_clients ORDER BY created_at DESC`); err != nil {
		return nil, errx.Wrap(err, "failed to list oauth clients", errx.TypeInternal)
	}
	clients := make([]*oauth.Client, 0, len(rows))
	for _, p := range rows {
		c := toClientDomain(p)
		clients = append(clients, &c)
	}
	return clients, nil
}

func (r *ClientPostgresRepository) Delete(ctx context.Context, id kernel.ClientID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_clients WHERE client_id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete oauth client", errx.TypeInternal)
	}
	return nil
}
