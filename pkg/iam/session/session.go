// Package session implements platform-scoped sessions: a user may hold one
// active session per platform (web, mcp, cli, api) at a time.
package session

import (
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Session is a platform-scoped login session. Only the SHA-256 hash of its
// token is ever persisted.
type Session struct {
	ID           kernel.SessionID `db:"id" json:"id"`
	UserID       kernel.UserID    `db:"user_id" json:"user_id"`
	Platform     kernel.Platform  `db:"platform" json:"platform"`
	TokenHash    string           `db:"token_hash" json:"-"`
	IPAddress    string           `db:"ip_address" json:"ip_address"`
	UserAgent    string           `db:"user_agent" json:"user_agent"`
	ExpiresAt    time.Time        `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	LastActivity time.Time        `db:"last_activity" json:"last_activity"`
	RevokedAt    *time.Time       `db:"revoked_at" json:"revoked_at,omitempty"`
}

func (s *Session) IsExpired() bool { return time.Now().After(s.ExpiresAt) }
func (s *Session) IsRevoked() bool { return s.RevokedAt != nil }
func (s *Session) IsValid() bool   { return !s.IsExpired() && !s.IsRevoked() }
func (s *Session) UpdateActivity() { s.LastActivity = time.Now() }

var ErrRegistry = errx.NewRegistry("SESSION")

var (
	CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "session not found")
	CodeExpired  = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "session expired")
	CodeRevoked  = ErrRegistry.Register("REVOKED", errx.TypeAuthorization, http.StatusUnauthorized, "session revoked")
)

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }
func ErrExpired() *errx.Error  { return ErrRegistry.New(CodeExpired) }
func ErrRevoked() *errx.Error  { return ErrRegistry.New(CodeRevoked) }
