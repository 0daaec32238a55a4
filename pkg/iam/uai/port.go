package uai

import (
	"context"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Repository persists universal identities and their linked credentials.
type Repository interface {
	FindLinkByHash(ctx context.Context, method, identifierHash string) (*CredentialLink, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id kernel.UniversalID) (*Identity, error)
	// CreateWithLink inserts a new Identity and its first CredentialLink in
	// a single transaction.
	CreateWithLink(ctx context.Context, identity Identity, link CredentialLink) error
	// LinkCredential attaches a new method to an existing Identity.
	LinkCredential(ctx context.Context, link CredentialLink) error
	TouchLink(ctx context.Context, method, identifierHash string) error
}
