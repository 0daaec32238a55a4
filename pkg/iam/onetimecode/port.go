package onetimecode

import "context"

// Repository persists one-time hand-off codes.
type Repository interface {
	Save(ctx context.Context, code Code) error
	// FindAndConsume atomically loads the code and marks it used in one
	// transaction, so two concurrent redemptions cannot both succeed.
	FindAndConsume(ctx context.Context, id string) (*Code, error)
	CleanExpired(ctx context.Context) error
}
