package oauth

import (
	"context"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// ClientRepository persists registered OAuth relying parties.
type ClientRepository interface {
	Save(ctx context.Context, client Client) error
	FindByID(ctx context.Context, id kernel.ClientID) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
	Delete(ctx context.Context, id kernel.ClientID) error
}

// CodeRepository persists authorization codes for the Authorization Code
// + PKCE grant.
type CodeRepository interface {
	Save(ctx context.Context, code AuthorizationCode) error
	FindAndConsume(ctx context.Context, code string) (*AuthorizationCode, error)
	CleanExpired(ctx context.Context) error
}

// DeviceRepository persists device code grants for the Device Code flow.
type DeviceRepository interface {
	Save(ctx context.Context, grant DeviceGrant) error
	FindByDeviceCode(ctx context.Context, deviceCode string) (*DeviceGrant, error)
	FindByUserCode(ctx context.Context, userCode string) (*DeviceGrant, error)
	Approve(ctx context.Context, userCode string, userID kernel.UserID) error
	Deny(ctx context.Context, userCode string) error
	UpdateLastPolled(ctx context.Context, deviceCode string) error
	CleanExpired(ctx context.Context) error
}
