package session

import (
	"context"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Repository persists platform-scoped sessions.
type Repository interface {
	Save(ctx context.Context, s Session) error
	FindByID(ctx context.Context, id kernel.SessionID) (*Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	FindByUser(ctx context.Context, userID kernel.UserID) ([]*Session, error)
	// FindActiveByUserAndPlatform enforces the one-active-session-per-platform rule.
	FindActiveByUserAndPlatform(ctx context.Context, userID kernel.UserID, platform kernel.Platform) (*Session, error)
	UpdateActivity(ctx context.Context, id kernel.SessionID) error
	Revoke(ctx context.Context, id kernel.SessionID) error
	RevokeAllForUser(ctx context.Context, userID kernel.UserID) error
	CleanExpired(ctx context.Context) error
}
