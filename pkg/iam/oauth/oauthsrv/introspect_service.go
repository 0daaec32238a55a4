package oauthsrv

import (
	"context"

	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// SessionRevocationChecker mirrors auth.SessionRevocationChecker, kept as a
// separate type so oauthsrv doesn't import auth just for this one method set.
type SessionRevocationChecker interface {
	IsRevoked(ctx context.Context, id kernel.SessionID) (bool, error)
}

// IntrospectService implements RFC 7662 token introspection. It never
// distinguishes "unknown" from "revoked" from "expired" to the caller:
// every failure collapses to {active: false}.
type IntrospectService struct {
	jwt      *auth.JWTService
	sessions SessionRevocationChecker
}

func NewIntrospectService(jwt *auth.JWTService, sessions SessionRevocationChecker) *IntrospectService {
	return &IntrospectService{jwt: jwt, sessions: sessions}
}

func (s *IntrospectService) Introspect(ctx context.Context, token string) oauth.IntrospectionResult {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return oauth.IntrospectionResult{Active: false}
	}
	if s.sessions != nil && !claims.SessionID.IsEmpty() {
		if revoked, err := s.sessions.IsRevoked(ctx, claims.SessionID); err != nil || revoked {
			return oauth.IntrospectionResult{Active: false}
		}
	}
	return oauth.IntrospectionResult{
		Active:    true,
		Subject:   claims.UserID.String(),
		Scope:     claims.Scopes,
		ClientID:  claims.ClientID,
		ExpiresAt: claims.ExpiresAt.Unix(),
		TokenType: "Bearer",
	}
}
