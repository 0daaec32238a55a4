package admin

import "context"

// Repository persists bypass accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*BypassAccount, error)
	UpdateLastUsed(ctx context.Context, email string) error
	Count(ctx context.Context) (int, error)
	Seed(ctx context.Context, account BypassAccount) error
}
