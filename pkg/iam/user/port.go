package user

import (
	"context"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Repository persists user accounts.
type Repository interface {
	Save(ctx context.Context, u User) error
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindOrCreateFromIdentity upserts a user seeded from an external
	// identity provider claim. Role/Plan are only set on first creation.
	FindOrCreateFromIdentity(ctx context.Context, email, name string, orgID kernel.OrganizationID) (*User, error)
}
