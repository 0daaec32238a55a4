// Package oauth implements the OAuth 2.1 relying-party registry,
// Authorization Code + PKCE grant, and the Device Code flow for
// headless/CLI clients.
package oauth

import (
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// ClientType distinguishes a public client (no secret, PKCE mandatory)
// from a confidential client (secret required).
type ClientType string

const (
	ClientTypePublic       ClientType = "public"
	ClientTypeConfidential ClientType = "confidential"
)

// Client is a registered OAuth relying party.
type Client struct {
	ClientID            kernel.ClientID `db:"client_id" json:"client_id"`
	ClientName          string          `db:"client_name" json:"client_name"`
	ClientType          ClientType      `db:"client_type" json:"client_type"`
	ClientSecretHash    *string         `db:"client_secret_hash" json:"-"`
	RequirePKCE         bool            `db:"require_pkce" json:"require_pkce"`
	AllowedRedirectURIs []string        `db:"allowed_redirect_uris" json:"allowed_redirect_uris"`
	AllowedScopes       []string        `db:"allowed_scopes" json:"allowed_scopes"`
	DefaultScopes       []string        `db:"default_scopes" json:"default_scopes"`
	Status              string          `db:"status" json:"status"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	ClientStatusActive   = "active"
	ClientStatusDisabled = "disabled"
)

func (c *Client) IsActive() bool { return c.Status == ClientStatusActive }

// AllowsRedirect reports whether uri is an exact match in the allowlist.
// Redirect URIs are never matched by prefix or pattern.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, allowed := range c.AllowedRedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}

func (c *Client) AllowsScopes(requested []string) bool {
	allowed := make(map[string]struct{}, len(c.AllowedScopes))
	for _, s := range c.AllowedScopes {
		allowed[s] = struct{}{}
	}
	for _, r := range requested {
		if _, ok := allowed[r]; !ok {
			return false
		}
	}
	return true
}

// CodeChallengeMethod is the PKCE transform applied to the code verifier.
type CodeChallengeMethod string

const (
	ChallengeMethodS256  CodeChallengeMethod = "S256"
	ChallengeMethodPlain CodeChallengeMethod = "plain"
)

// AuthorizationCode is the short-lived code minted by /oauth/authorize and
// redeemed once at /oauth/token.
type AuthorizationCode struct {
	Code                string               `db:"code" json:"-"`
	ClientID            kernel.ClientID      `db:"client_id" json:"client_id"`
	UserID              kernel.UserID        `db:"user_id" json:"user_id"`
	Scope               []string             `db:"scope" json:"scope"`
	RedirectURI         string               `db:"redirect_uri" json:"redirect_uri"`
	CodeChallenge       string               `db:"code_challenge" json:"-"`
	CodeChallengeMethod CodeChallengeMethod  `db:"code_challenge_method" json:"-"`
	Used                bool                 `db:"used" json:"-"`
	ExpiresAt           time.Time            `db:"expires_at" json:"-"`
	CreatedAt           time.Time            `db:"created_at" json:"-"`
}

func (c *AuthorizationCode) IsExpired() bool { return time.Now().After(c.ExpiresAt) }
func (c *AuthorizationCode) IsValid() bool   { return !c.Used && !c.IsExpired() }

// DeviceGrantStatus is the polling state of a device code grant.
type DeviceGrantStatus string

const (
	DeviceStatusPending  DeviceGrantStatus = "pending"
	DeviceStatusApproved DeviceGrantStatus = "approved"
	DeviceStatusDenied   DeviceGrantStatus = "denied"
	DeviceStatusExpired  DeviceGrantStatus = "expired"
)

// DeviceGrant tracks one Device Code flow: a CLI polls /oauth/token with
// DeviceCode while the user approves UserCode on a separate browser.
type DeviceGrant struct {
	DeviceCode string            `db:"device_code" json:"-"`
	UserCode   string            `db:"user_code" json:"user_code"`
	ClientID   kernel.ClientID   `db:"client_id" json:"client_id"`
	Scope      []string          `db:"scope" json:"scope"`
	Status     DeviceGrantStatus `db:"status" json:"status"`
	UserID     *kernel.UserID    `db:"user_id" json:"user_id,omitempty"`
	Interval     int               `db:"interval_seconds" json:"interval"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	ExpiresAt    time.Time         `db:"expires_at" json:"expires_at"`
	LastPolledAt *time.Time        `db:"last_polled_at" json:"-"`
}

func (d *DeviceGrant) IsExpired() bool { return time.Now().After(d.ExpiresAt) }

// IntrospectionResult is the RFC 7662 response shape. An inactive token
// never leaks why: Active=false is the only signal returned to the caller.
type IntrospectionResult struct {
	Active    bool     `json:"active"`
	Subject   string   `json:"sub,omitempty"`
	Scope     []string `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
}

var ErrRegistry = errx.NewRegistry("OAUTH")

var (
	CodeClientNotFound     = ErrRegistry.Register("CLIENT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "oauth client not found")
	CodeClientDisabled     = ErrRegistry.Register("CLIENT_DISABLED", errx.TypeAuthorization, http.StatusForbidden, "oauth client disabled")
	CodeInvalidRedirectURI = ErrRegistry.Register("INVALID_REDIRECT_URI", errx.TypeValidation, http.StatusBadRequest, "redirect_uri not in allowlist")
	CodeInvalidScope       = ErrRegistry.Register("INVALID_SCOPE", errx.TypeValidation, http.StatusBadRequest, "requested scope exceeds client's allowed scopes")
	CodePKCERequired       = ErrRegistry.Register("PKCE_REQUIRED", errx.TypeValidation, http.StatusBadRequest, "public clients must use PKCE")
	CodeInvalidGrant       = ErrRegistry.Register("INVALID_GRANT", errx.TypeValidation, http.StatusBadRequest, "invalid_grant")
	CodeInvalidClient      = ErrRegistry.Register("INVALID_CLIENT", errx.TypeAuthorization, http.StatusUnauthorized, "invalid_client")
	CodeDeviceNotFound     = ErrRegistry.Register("DEVICE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "device grant not found")
	CodeAuthorizationPending = ErrRegistry.Register("AUTHORIZATION_PENDING", errx.TypeValidation, http.StatusBadRequest, "authorization_pending")
	CodeSlowDown           = ErrRegistry.Register("SLOW_DOWN", errx.TypeValidation, http.StatusBadRequest, "slow_down")
	CodeAccessDenied       = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "access_denied")
	CodeExpiredToken       = ErrRegistry.Register("EXPIRED_TOKEN", errx.TypeValidation, http.StatusBadRequest, "expired_token")
)

func ErrClientNotFound() *errx.Error       { return ErrRegistry.New(CodeClientNotFound) }
func ErrClientDisabled() *errx.Error       { return ErrRegistry.New(CodeClientDisabled) }
func ErrInvalidRedirectURI() *errx.Error   { return ErrRegistry.New(CodeInvalidRedirectURI) }
func ErrInvalidScope() *errx.Error         { return ErrRegistry.New(CodeInvalidScope) }
func ErrPKCERequired() *errx.Error         { return ErrRegistry.New(CodePKCERequired) }
func ErrInvalidGrant() *errx.Error         { return ErrRegistry.New(CodeInvalidGrant) }
func ErrInvalidClient() *errx.Error        { return ErrRegistry.New(CodeInvalidClient) }
func ErrDeviceNotFound() *errx.Error       { return ErrRegistry.New(CodeDeviceNotFound) }
func ErrAuthorizationPending() *errx.Error { return ErrRegistry.New(CodeAuthorizationPending) }
func ErrSlowDown() *errx.Error             { return ErrRegistry.New(CodeSlowDown) }
func ErrAccessDenied() *errx.Error         { return ErrRegistry.New(CodeAccessDenied) }
func ErrExpiredToken() *errx.Error         { return ErrRegistry.New(CodeExpiredToken) }
