package auth

import (
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// ============================================================================
// Token Types
// ============================================================================

// RefreshToken is a long-lived, platform-scoped token that can be exchanged
// for a fresh access token. Only its SHA-256 hash is ever persisted.
type RefreshToken struct {
	ID             string                `db:"id" json:"id"`
	TokenHash      string                `db:"token_hash" json:"-"`
	UserID         kernel.UserID         `db:"user_id" json:"user_id"`
	OrganizationID kernel.OrganizationID `db:"organization_id" json:"organization_id,omitempty"`
	SessionID      kernel.SessionID      `db:"session_id" json:"session_id,omitempty"`
	ClientID       kernel.ClientID       `db:"client_id" json:"client_id,omitempty"`
	Scope          []string              `db:"scope" json:"scope,omitempty"`
	Platform       kernel.Platform       `db:"platform" json:"platform"`
	ExpiresAt      time.Time             `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
	IsRevoked      bool                  `db:"is_revoked" json:"is_revoked"`
}

// TokenClaims is the decoded, validated form of an access token.
type TokenClaims struct {
	UserID          kernel.UserID
	OrganizationID  kernel.OrganizationID
	SessionID       kernel.SessionID
	UniversalID     kernel.UniversalID
	Email           string
	Name            string
	Role            string
	Plan            string
	Platform        kernel.Platform
	ProjectScope    string
	Scopes          []string
	BypassAllChecks bool
	ClientID        string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	JTI             string
}

// ============================================================================
// Domain Methods
// ============================================================================

func (r *RefreshToken) IsExpired() bool { return time.Now().After(r.ExpiresAt) }
func (r *RefreshToken) IsValid() bool   { return !r.IsRevoked && !r.IsExpired() }

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidRefreshToken   = ErrRegistry.Register("INVALID_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid refresh token")
	CodeExpiredRefreshToken   = ErrRegistry.Register("EXPIRED_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Expired refresh token")
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Token validation failed")
	CodeNoCredential          = ErrRegistry.Register("NO_CREDENTIAL", errx.TypeAuthorization, http.StatusUnauthorized, "No credential presented")
	CodeInvalidCredential     = ErrRegistry.Register("INVALID_CREDENTIAL", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid login credential")
	CodeOnetimeCodeUnavailable = ErrRegistry.Register("ONETIME_CODE_UNAVAILABLE", errx.TypeInternal, http.StatusInternalServerError, "One-time code issuance is not configured")
)

func ErrInvalidRefreshToken() *errx.Error   { return ErrRegistry.New(CodeInvalidRefreshToken) }
func ErrExpiredRefreshToken() *errx.Error   { return ErrRegistry.New(CodeExpiredRefreshToken) }
func ErrTokenGenerationFailed() *errx.Error { return ErrRegistry.New(CodeTokenGenerationFailed) }
func ErrTokenValidationFailed() *errx.Error { return ErrRegistry.New(CodeTokenValidationFailed) }
func ErrNoCredential() *errx.Error          { return ErrRegistry.New(CodeNoCredential) }
func ErrInvalidCredential() *errx.Error     { return ErrRegistry.New(CodeInvalidCredential) }
func ErrOnetimeCodeUnavailable() *errx.Error { return ErrRegistry.New(CodeOnetimeCodeUnavailable) }
