// Package oauthsrv implements the OAuth 2.1 client registry, the
// Authorization Code + PKCE grant, the Device Code flow, and RFC 7662
// token introspection.
package oauthsrv

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// ClientService manages the registered relying-party directory served by
// oauthapi under /admin/oauth/clients.
type ClientService struct {
	repo oauth.ClientRepository
}

func NewClientService(repo oauth.ClientRepository) *ClientService {
	return &ClientService{repo: repo}
}

// RegisterRequest describes a new OAuth client registration.
type RegisterRequest struct {
	ClientName          string
	ClientType          oauth.ClientType
	ClientSecret        string // only for confidential clients; stored as a bcrypt hash
	AllowedRedirectURIs []string
	AllowedScopes       []string
	DefaultScopes       []string
}

// Register creates a new client. Public clients always require PKCE;
// confidential clients must present a secret, which is hashed before
// storage and never returned.
func (s *ClientService) Register(ctx context.Context, req RegisterRequest) (*oauth.Client, error) {
	client := oauth.Client{
		ClientID:            kernel.NewClientID(uuid.New().String()),
		ClientName:          req.ClientName,
		ClientType:          req.ClientType,
		RequirePKCE:         req.ClientType == oauth.ClientTypePublic,
		AllowedRedirectURIs: req.AllowedRedirectURIs,
		AllowedScopes:       req.AllowedScopes,
		DefaultScopes:       req.DefaultScopes,
		Status:              oauth.ClientStatusActive,
	}

	if req.ClientType == oauth.ClientTypeConfidential {
		if req.ClientSecret == "" {
			return nil, errx.Validation("confidential clients must present a client secret")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.ClientSecret), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashed := string(hash)
		client.ClientSecretHash = &hashed
	}

	if err := s.repo.Save(ctx, client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *ClientService) Get(ctx context.Context, id kernel.ClientID) (*oauth.Client, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ClientService) List(ctx context.Context) ([]*oauth.Client, error) {
	return s.repo.List(ctx)
}

func (s *ClientService) Delete(ctx context.Context, id kernel.ClientID) error {
	return s.repo.Delete(ctx, id)
}

// Authenticate verifies a confidential client's secret. Public clients
// never call this: they authenticate solely via PKCE.
func (s *ClientService) Authenticate(ctx context.Context, clientID kernel.ClientID, secret string) (*oauth.Client, error) {
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, oauth.ErrInvalidClient()
	}
	if !client.IsActive() {
		return nil, oauth.ErrClientDisabled()
	}
	if client.ClientType == oauth.ClientTypeConfidential {
		if client.ClientSecretHash == nil {
			return nil, oauth.ErrInvalidClient()
		}
		if bcrypt.CompareHashAndPassword([]byte(*client.ClientSecretHash), []byte(secret)) != nil {
			return nil, oauth.ErrInvalidClient()
		}
	}
	return client, nil
}
