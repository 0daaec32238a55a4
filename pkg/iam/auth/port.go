package auth

import (
	"context"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// TokenRepository persists refresh tokens.
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token RefreshToken) error
	FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error
	CleanExpiredTokens(ctx context.Context) error
}

// TokenService mints and validates access/refresh tokens.
type TokenService interface {
	GenerateAccessToken(p IssueParams) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	GenerateRefreshToken() string
	RefreshTokenTTL() time.Duration
}

// AuditService records best-effort authentication events. A failure to
// record an event never blocks or fails the request it describes.
type AuditService interface {
	LogLoginAttempt(ctx context.Context, userID kernel.UserID, method string, success bool, ip, userAgent string)
	LogLogout(ctx context.Context, userID kernel.UserID, ip string)
	LogTokenRefresh(ctx context.Context, userID kernel.UserID, ip string)
	LogAdminBypass(ctx context.Context, adminEmail string, ip string)
}
