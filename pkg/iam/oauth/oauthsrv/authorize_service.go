package oauthsrv

import (
	"context"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

const authorizationCodeTTL = 60 * time.Second

// AuthorizeService implements GET /oauth/authorize: the consent step of the
// Authorization Code + PKCE grant.
type AuthorizeService struct {
	clients oauth.ClientRepository
	codes   oauth.CodeRepository
}

func NewAuthorizeService(clients oauth.ClientRepository, codes oauth.CodeRepository) *AuthorizeService {
	return &AuthorizeService{clients: clients, codes: codes}
}

// AuthorizeRequest mirrors the authorize endpoint's query parameters.
type AuthorizeRequest struct {
	ClientID            kernel.ClientID
	RedirectURI         string
	Scope               []string
	CodeChallenge       string
	CodeChallengeMethod oauth.CodeChallengeMethod
}

// Authorize validates the request against the client's registration and,
// on success, persists a single-use authorization code bound to the
// consenting user.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest, u *user.User) (string, error) {
	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		return "", oauth.ErrClientNotFound()
	}
	if !client.IsActive() {
		return "", oauth.ErrClientDisabled()
	}
	if !client.AllowsRedirect(req.RedirectURI) {
		return "", oauth.ErrInvalidRedirectURI()
	}
	if len(req.Scope) > 0 && !client.AllowsScopes(req.Scope) {
		return "", oauth.ErrInvalidScope()
	}
	if client.RequirePKCE && req.CodeChallenge == "" {
		return "", oauth.ErrPKCERequired()
	}
	if client.ClientType == oauth.ClientTypePublic && req.CodeChallengeMethod != oauth.ChallengeMethodS256 {
		return "", oauth.ErrPKCERequired()
	}

	scope := req.Scope
	if len(scope) == 0 {
		scope = client.DefaultScopes
	}

	rawCode, err := oauth.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}

	code := oauth.AuthorizationCode{
		Code:                rawCode,
		ClientID:            req.ClientID,
		UserID:              u.ID,
		Scope:               scope,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(authorizationCodeTTL),
		CreatedAt:           time.Now(),
	}
	if err := s.codes.Save(ctx, code); err != nil {
		return "", err
	}
	return rawCode, nil
}
