// Package admin implements the always-available emergency bypass path:
// locally hashed credentials that exist independent of the identity
// provider, issuing tokens that short-circuit every scope check.
package admin

import (
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
)

// BypassAccount is a root identity that authenticates against a local
// bcrypt hash rather than the upstream IdP. At least one enabled account
// must exist at all times; this is enforced at startup, not in code here.
type BypassAccount struct {
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	TOTPSecret   string     `db:"totp_secret" json:"-"`
	Disabled     bool       `db:"disabled" json:"disabled"`
	LastUsedAt   *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

func (a *BypassAccount) IsUsable() bool { return !a.Disabled }

var ErrRegistry = errx.NewRegistry("ADMIN")

var (
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "invalid admin credentials")
	CodeDisabled           = ErrRegistry.Register("DISABLED", errx.TypeAuthorization, http.StatusForbidden, "admin account disabled")
	CodeNoAccounts         = ErrRegistry.Register("NO_ACCOUNTS", errx.TypeInternal, http.StatusInternalServerError, "no bootstrap admin accounts configured")
)

func ErrInvalidCredentials() *errx.Error { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrDisabled() *errx.Error           { return ErrRegistry.New(CodeDisabled) }
func ErrNoAccounts() *errx.Error         { return ErrRegistry.New(CodeNoAccounts) }
