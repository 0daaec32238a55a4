package apikey

import (
	"context"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Repository persists API keys and resolves them by hash.
type Repository interface {
	Save(ctx context.Context, key APIKey) error
	FindByID(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) (*APIKey, error)
	FindByHash(ctx context.Context, keyHash string) (*APIKey, error)
	// FindByLegacyPlaintext looks a key up by its raw value, for the narrow
	// window where keys issued before hashing was enforced are migrated
	// the next time they are presented. Returns apikey.ErrNotFound once no
	// legacy rows remain.
	FindByLegacyPlaintext(ctx context.Context, rawKey string) (*APIKey, error)
	FindByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*APIKey, error)
	FindActiveByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*APIKey, error)
	FindByUser(ctx context.Context, userID kernel.UserID, orgID kernel.OrganizationID) ([]*APIKey, error)
	Delete(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) error
	UpdateLastUsed(ctx context.Context, id kernel.APIKeyID) error
	// RehashLegacy promotes a legacy plaintext row to hashed-only storage
	// once it has been matched by its plaintext, whether or not the key is
	// still active.
	RehashLegacy(ctx context.Context, id kernel.APIKeyID, keyHash string) error
}
