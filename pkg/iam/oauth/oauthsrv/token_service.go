package oauthsrv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/iam/session"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
)

// SessionIssuer is the slice of sessionsrv.Service the token grant needs:
// one web-platform session per completed OAuth login.
type SessionIssuer interface {
	Create(ctx context.Context, userID kernel.UserID, platform kernel.Platform, ip, userAgent string) (*session.Session, string, error)
	RevokeAll(ctx context.Context, userID kernel.UserID) error
}

// TokenPair is what every successful grant at /oauth/token returns.
type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	Scope        []string `json:"scope,omitempty"`
}

// TokenService implements POST /oauth/token for the authorization_code,
// device_code, and refresh_token grant types.
type TokenService struct {
	clients  *ClientService
	codes    oauth.CodeRepository
	devices  oauth.DeviceRepository
	users    user.Repository
	sessions SessionIssuer
	tokens   auth.TokenRepository
	jwt      *auth.JWTService
}

func NewTokenService(clients *ClientService, codes oauth.CodeRepository, devices oauth.DeviceRepository, users user.Repository, sessions SessionIssuer, tokens auth.TokenRepository, jwt *auth.JWTService) *TokenService {
	return &TokenService{clients: clients, codes: codes, devices: devices, users: users, sessions: sessions, tokens: tokens, jwt: jwt}
}

// ExchangeAuthorizationCodeRequest mirrors grant_type=authorization_code's
// token request body.
type ExchangeAuthorizationCodeRequest struct {
	Code         string
	RedirectURI  string
	ClientID     kernel.ClientID
	ClientSecret string
	CodeVerifier string
	IP           string
	UserAgent    string
}

// ExchangeAuthorizationCode redeems a single-use code for a token pair.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, req ExchangeAuthorizationCodeRequest) (*TokenPair, error) {
	client, err := s.clients.repo.FindByID(ctx, req.ClientID)
	if err != nil {
		return nil, oauth.ErrInvalidClient()
	}
	if client.ClientType == oauth.ClientTypeConfidential {
		if _, err := s.clients.Authenticate(ctx, req.ClientID, req.ClientSecret); err != nil {
			return nil, err
		}
	}

	code, err := s.codes.FindAndConsume(ctx, req.Code)
	if err != nil {
		return nil, oauth.ErrInvalidGrant()
	}
	if !code.IsValid() || code.ClientID != req.ClientID || code.RedirectURI != req.RedirectURI {
		return nil, oauth.ErrInvalidGrant()
	}

	if client.ClientType == oauth.ClientTypePublic {
		if !oauth.VerifyPKCE(req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod) {
			return nil, oauth.ErrInvalidGrant()
		}
	}

	u, err := s.users.FindByID(ctx, code.UserID)
	if err != nil {
		return nil, oauth.ErrInvalidGrant()
	}

	return s.issueTokenPair(ctx, u, code.Scope, req.ClientID, kernel.PlatformWeb, req.IP, req.UserAgent)
}

// issueTokenPair mints a session-bound access/refresh pair and persists the
// refresh token's hash so a later grant_type=refresh_token request can look
// it up, rotate it, and detect reuse. Shared by the authorization_code and
// device_code grants.
func (s *TokenService) issueTokenPair(ctx context.Context, u *user.User, scope []string, clientID kernel.ClientID, platform kernel.Platform, ip, userAgent string) (*TokenPair, error) {
	sess, refreshRaw, err := s.sessions.Create(ctx, u.ID, platform, ip, userAgent)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.SaveRefreshToken(ctx, auth.RefreshToken{
		ID:             uuid.New().String(),
		TokenHash:      hashToken(refreshRaw),
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		SessionID:      sess.ID,
		ClientID:       clientID,
		Scope:          scope,
		Platform:       platform,
		ExpiresAt:      time.Now().Add(s.jwt.RefreshTokenTTL()),
		CreatedAt:      time.Now(),
	}); err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.GenerateAccessToken(auth.IssueParams{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		SessionID:      sess.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           string(u.Role),
		Plan:           u.Plan,
		Platform:       platform,
		Scopes:         scope,
		ClientID:       clientID.String(),
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshRaw,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
		Scope:        scope,
	}, nil
}

// ExchangeRefreshTokenRequest mirrors grant_type=refresh_token's token
// request body.
type ExchangeRefreshTokenRequest struct {
	RefreshToken string
	IP           string
	UserAgent    string
}

// ExchangeRefreshToken rotates an OAuth-issued refresh token for a fresh
// token pair, reusing the client and scope it was originally granted under.
// Presenting an already-rotated token revokes the whole chain, mirroring
// authsrv.Service.Refresh's reuse-detection.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, req ExchangeRefreshTokenRequest) (*TokenPair, error) {
	token, err := s.tokens.FindRefreshTokenByHash(ctx, hashToken(req.RefreshToken))
	if err != nil {
		return nil, oauth.ErrInvalidGrant()
	}
	if token.IsRevoked {
		logx.WithField("user_id", token.UserID).Warn("oauthsrv: rotated refresh token reused, revoking session chain")
		_ = s.tokens.RevokeAllUserTokens(ctx, token.UserID)
		_ = s.sessions.RevokeAll(ctx, token.UserID)
		return nil, oauth.ErrInvalidGrant()
	}
	if token.IsExpired() {
		return nil, oauth.ErrInvalidGrant()
	}

	u, err := s.users.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, oauth.ErrInvalidGrant()
	}

	if err := s.tokens.RevokeRefreshToken(ctx, token.ID); err != nil {
		return nil, err
	}

	return s.issueTokenPair(ctx, u, token.Scope, token.ClientID, token.Platform, req.IP, req.UserAgent)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
