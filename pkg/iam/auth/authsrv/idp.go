package authsrv

import "context"

// IdentityProvider is the external upstream IdP this gateway trusts for
// password verification. authinfra.HTTPIdentityProvider is the in-tree
// implementation the container wires; tests wire a stub.
type IdentityProvider interface {
	VerifyPassword(ctx context.Context, email, password string) (*IdPIdentity, error)
	RefreshIdentity(ctx context.Context, refreshToken string) (*IdPIdentity, error)
}

// IdPIdentity is what the upstream IdP hands back on a successful
// verification: enough to upsert a local user.User and derive an
// organization.
type IdPIdentity struct {
	Email          string
	Name           string
	OrganizationID string
}
