// Package authsrv implements the credential state machine: password login,
// one-time code exchange, token refresh, and logout. OAuth/PKCE and the
// device code flow live in oauthsrv; this package only covers the direct
// IdP-backed login path and its refresh/logout lifecycle.
package authsrv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/iam/onetimecode"
	"github.com/lanonasis/auth-gateway/pkg/iam/session"
	"github.com/lanonasis/auth-gateway/pkg/iam/uai"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
	"github.com/lanonasis/auth-gateway/pkg/outbox"
)

// Service implements login, refresh, logout, and the one-time code handoff.
type Service struct {
	idp      IdentityProvider
	users    user.Repository
	sessions SessionFacade
	tokens   auth.TokenRepository
	jwt      *auth.JWTService
	onetime  *onetimeFacade
	audit    auth.AuditService
	events   outbox.Store
	uai      UAIResolver
}

// UAIResolver is the slice of uaisrv.Service authsrv needs to attach a
// stable cross-method identity to a password login. Optional: when nil,
// the minted access token simply carries no UniversalID.
type UAIResolver interface {
	Resolve(ctx context.Context, method, identifier string, opts uai.ResolveOptions) (*uai.ResolvedIdentity, error)
}

// SessionFacade is the slice of sessionsrv.Service authsrv needs to create
// and revoke platform sessions, kept as an interface to avoid a direct
// dependency on the concrete service type.
type SessionFacade interface {
	Create(ctx context.Context, userID kernel.UserID, platform kernel.Platform, ip, userAgent string) (*session.Session, string, error)
	Validate(ctx context.Context, rawToken string) (*session.Session, error)
	Revoke(ctx context.Context, userID kernel.UserID, id kernel.SessionID) error
	RevokeAll(ctx context.Context, userID kernel.UserID) error
}

// onetimeFacade narrows onetimesrv.Service to what authsrv needs.
type onetimeFacade struct {
	issue    func(ctx context.Context, userID kernel.UserID, refreshToken, redirectTo, state string) (*onetimecode.Code, error)
	exchange func(ctx context.Context, id string) (kernel.UserID, string, error)
}

func NewService(
	idp IdentityProvider,
	users user.Repository,
	sessions SessionFacade,
	tokens auth.TokenRepository,
	jwt *auth.JWTService,
	audit auth.AuditService,
	events outbox.Store,
) *Service {
	return &Service{
		idp:      idp,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		jwt:      jwt,
		audit:    audit,
		events:   events,
	}
}

// LoginRequest is POST /v1/auth/login's body.
type LoginRequest struct {
	Email        string
	Password     string
	ProjectScope string
	RedirectTo   string
	State        string
	IP           string
	UserAgent    string
}

// LoginResult is returned to the HTTP layer. Login never hands out tokens
// directly: it always returns a one-time hand-off code, which the caller
// redeems at /v1/auth/exchange for the actual access/refresh pair. When
// RedirectTo was supplied, RedirectURL is populated so the HTTP layer can
// 302 instead of returning the code as JSON.
type LoginResult struct {
	OneTimeCode string `json:"code"`
	ExpiresIn   int    `json:"expires_in"`
	RedirectURL string `json:"-"`
}

// ExchangeResult carries the token pair handed out by Exchange.
type ExchangeResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Login forwards credentials to the upstream IdP and, on success, creates a
// new session and stores its refresh token. No token is returned directly:
// the refresh token is wrapped in a one-time code, and an access token is
// only minted when that code is redeemed via Exchange.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	identity, err := s.idp.VerifyPassword(ctx, req.Email, req.Password)
	if err != nil {
		s.audit.LogLoginAttempt(ctx, kernel.NewUserID(""), "password", false, req.IP, req.UserAgent)
		return nil, auth.ErrInvalidCredential()
	}

	u, err := s.users.FindOrCreateFromIdentity(ctx, identity.Email, identity.Name, kernel.NewOrganizationID(identity.OrganizationID))
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, user.ErrInactive()
	}

	s.audit.LogLoginAttempt(ctx, u.ID, "password", true, req.IP, req.UserAgent)

	sess, refreshRaw, err := s.sessions.Create(ctx, u.ID, kernel.PlatformWeb, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.SaveRefreshToken(ctx, auth.RefreshToken{
		ID:             uuid.New().String(),
		TokenHash:      hashToken(refreshRaw),
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		SessionID:      sess.ID,
		Platform:       kernel.PlatformWeb,
		ExpiresAt:      time.Now().Add(s.jwt.RefreshTokenTTL()),
		CreatedAt:      time.Now(),
	}); err != nil {
		return nil, err
	}

	s.emitEvent(ctx, u.ID.String(), "UserUpserted", map[string]string{"email": u.Email})
	s.emitEvent(ctx, sess.ID.String(), "SessionCreated", map[string]string{"user_id": u.ID.String()})

	// Login never hands out tokens directly: the refresh token just minted is
	// wrapped in a one-time code, redeemed at Exchange for a token pair.
	if s.onetime == nil {
		return nil, auth.ErrOnetimeCodeUnavailable()
	}

	code, err := s.onetime.issue(ctx, u.ID, refreshRaw, req.RedirectTo, req.State)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		OneTimeCode: code.ID,
		ExpiresIn:   int(time.Until(code.ExpiresAt) / time.Second),
		RedirectURL: req.RedirectTo,
	}, nil
}

// WithUAIResolver attaches cross-method identity resolution. Optional:
// omitted entirely, minted tokens carry no UniversalID claim.
func (s *Service) WithUAIResolver(resolver UAIResolver) *Service {
	s.uai = resolver
	return s
}

// resolveUniversalID looks up (or links) the stable cross-method identity
// for a password login. Failures are logged and swallowed per uaisrv's own
// contract: identity resolution never blocks authentication.
func (s *Service) resolveUniversalID(ctx context.Context, email string) kernel.UniversalID {
	if s.uai == nil {
		return ""
	}
	identity, err := s.uai.Resolve(ctx, "password", email, uai.ResolveOptions{CreateIfMissing: true, PrimaryEmail: email})
	if err != nil {
		logx.WithError(err).Warn("authsrv: universal identity resolution failed")
		return ""
	}
	return identity.UniversalID
}

// WithOnetimeCode attaches the one-time authorization code issuer that
// Login and Exchange depend on. Without it, Login fails with
// ErrOnetimeCodeUnavailable and Exchange fails with ErrInvalidCode.
func (s *Service) WithOnetimeCode(
	issue func(ctx context.Context, userID kernel.UserID, refreshToken, redirectTo, state string) (*onetimecode.Code, error),
	exchange func(ctx context.Context, id string) (kernel.UserID, string, error),
) *Service {
	s.onetime = &onetimeFacade{issue: issue, exchange: exchange}
	return s
}

// Exchange redeems a one-time code minted by Login,
// refreshing against the IdP with the stored refresh token and minting a
// fresh gateway token pair.
func (s *Service) Exchange(ctx context.Context, code string) (*ExchangeResult, error) {
	if s.onetime == nil {
		return nil, onetimecode.ErrInvalidCode()
	}
	userID, idpRefreshToken, err := s.onetime.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	if _, err := s.idp.RefreshIdentity(ctx, idpRefreshToken); err != nil {
		return nil, auth.ErrInvalidCredential()
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess, refreshRaw, err := s.sessions.Create(ctx, u.ID, kernel.PlatformWeb, "", "")
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.GenerateAccessToken(auth.IssueParams{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		SessionID:      sess.ID,
		UniversalID:    s.resolveUniversalID(ctx, u.Email),
		Email:          u.Email,
		Name:           u.Name,
		Role:           string(u.Role),
		Plan:           u.Plan,
		Platform:       kernel.PlatformWeb,
		Scopes:         []string{"*"},
	})
	if err != nil {
		return nil, err
	}

	if err := s.tokens.SaveRefreshToken(ctx, auth.RefreshToken{
		ID:             uuid.New().String(),
		TokenHash:      hashToken(refreshRaw),
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		SessionID:      sess.ID,
		Platform:       kernel.PlatformWeb,
		ExpiresAt:      time.Now().Add(s.jwt.RefreshTokenTTL()),
		CreatedAt:      time.Now(),
	}); err != nil {
		return nil, err
	}

	s.emitEvent(ctx, sess.ID.String(), "SessionCreated", map[string]string{"user_id": u.ID.String(), "via": "onetime_exchange"})

	return &ExchangeResult{
		AccessToken:  accessToken,
		RefreshToken: refreshRaw,
		ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
		TokenType:    "Bearer",
	}, nil
}

// Refresh rotates a refresh token: the old one is revoked and a new
// access/refresh pair is minted. Presenting an already-revoked token is
// treated as reuse of a rotated token, which revokes every session the
// user holds and raises SessionCompromised.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken, ip string) (*ExchangeResult, error) {
	token, err := s.tokens.FindRefreshTokenByHash(ctx, hashToken(rawRefreshToken))
	if err != nil {
		return nil, auth.ErrInvalidRefreshToken()
	}
	if token.IsRevoked {
		logx.WithField("user_id", token.UserID).Warn("authsrv: rotated refresh token reused, revoking session chain")
		_ = s.tokens.RevokeAllUserTokens(ctx, token.UserID)
		_ = s.sessions.RevokeAll(ctx, token.UserID)
		s.emitEvent(ctx, token.UserID.String(), "SessionCompromised", nil)
		return nil, auth.ErrInvalidRefreshToken()
	}
	if token.IsExpired() {
		return nil, auth.ErrExpiredRefreshToken()
	}

	u, err := s.users.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.RevokeRefreshToken(ctx, token.ID); err != nil {
		return nil, err
	}

	newRefreshRaw := s.jwt.GenerateRefreshToken()
	if err := s.tokens.SaveRefreshToken(ctx, auth.RefreshToken{
		ID:             uuid.New().String(),
		TokenHash:      hashToken(newRefreshRaw),
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		SessionID:      token.SessionID,
		Platform:       token.Platform,
		ExpiresAt:      time.Now().Add(s.jwt.RefreshTokenTTL()),
		CreatedAt:      time.Now(),
	}); err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.GenerateAccessToken(auth.IssueParams{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		SessionID:      token.SessionID,
		UniversalID:    s.resolveUniversalID(ctx, u.Email),
		Email:          u.Email,
		Name:           u.Name,
		Role:           string(u.Role),
		Plan:           u.Plan,
		Platform:       token.Platform,
		Scopes:         []string{"*"},
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogTokenRefresh(ctx, u.ID, ip)
	s.emitEvent(ctx, u.ID.String(), "SessionRefreshed", nil)

	return &ExchangeResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshRaw,
		ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
		TokenType:    "Bearer",
	}, nil
}

// Logout revokes only the session bound to the presented access token. It
// always succeeds from the caller's perspective, even if no session
// matched, so a probing client can't use the response to enumerate valid
// tokens.
func (s *Service) Logout(ctx context.Context, accessToken, ip string) {
	claims, err := s.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return
	}
	if err := s.sessions.Revoke(ctx, claims.UserID, claims.SessionID); err != nil {
		logx.WithError(err).Warn("authsrv: failed to revoke session on logout")
		return
	}
	s.audit.LogLogout(ctx, claims.UserID, ip)
	s.emitEvent(ctx, claims.UserID.String(), "SessionRevoked", nil)
}

func (s *Service) emitEvent(ctx context.Context, aggregateID, eventType string, payload any) {
	if s.events == nil {
		return
	}
	event, err := outbox.NewEvent(aggregateID, eventType, payload)
	if err != nil {
		logx.WithError(err).Warn("authsrv: failed to build event")
		return
	}
	if err := s.events.Append(ctx, event, nil); err != nil {
		logx.WithError(err).Warn("authsrv: failed to append event")
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
