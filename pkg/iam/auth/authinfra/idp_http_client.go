package authinfra

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth/authsrv"
)

// HTTPIdentityProvider implements authsrv.IdentityProvider against an
// upstream OIDC-style token endpoint using the resource-owner-password
// grant. This is the one concrete wiring the gateway ships; anything more
// elaborate (SAML, a different grant) is a different IdentityProvider the
// caller supplies instead.
type HTTPIdentityProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPIdentityProvider(baseURL string) *HTTPIdentityProvider {
	return &HTTPIdentityProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type idpTokenResponse struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
	RefreshToken   string `json:"refresh_token"`
}

func (p *HTTPIdentityProvider) VerifyPassword(ctx context.Context, email, password string) (*authsrv.IdPIdentity, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type": "password",
		"username":   email,
		"password":   password,
	})

	resp, err := p.post(ctx, "/token", body)
	if err != nil {
		return nil, err
	}
	return &authsrv.IdPIdentity{Email: resp.Email, Name: resp.Name, OrganizationID: resp.OrganizationID}, nil
}

func (p *HTTPIdentityProvider) RefreshIdentity(ctx context.Context, refreshToken string) (*authsrv.IdPIdentity, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})

	resp, err := p.post(ctx, "/token", body)
	if err != nil {
		return nil, err
	}
	return &authsrv.IdPIdentity{Email: resp.Email, Name: resp.Name, OrganizationID: resp.OrganizationID}, nil
}

func (p *HTTPIdentityProvider) post(ctx context.Context, path string, body []byte) (*idpTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errx.Wrap(err, "failed to build idp request", errx.TypeInternal)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errx.Wrap(err, "idp request failed", errx.TypeExternal)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errx.External("idp rejected credentials")
	}

	var out idpTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errx.Wrap(err, "failed to decode idp response", errx.TypeExternal)
	}
	return &out, nil
}
