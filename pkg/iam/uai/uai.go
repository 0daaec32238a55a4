// Package uai implements the Universal Authentication Identifier: every
// credential a caller presents (IdP JWT, API key, OAuth session, device
// code, SSO cookie) resolves to the same stable identity, regardless of
// which method was used.
package uai

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Identity is the canonical cross-method identity record.
type Identity struct {
	ID           kernel.UniversalID `db:"id" json:"id"`
	PrimaryEmail string             `db:"primary_email" json:"primary_email"`
	UserID       *kernel.UserID     `db:"user_id" json:"user_id,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	LastSeenAt   time.Time          `db:"last_seen_at" json:"last_seen_at"`
}

// CredentialLink binds one authentication method's identifier to a UAI.
// IdentifierHash is the only form of the identifier ever persisted.
type CredentialLink struct {
	ID             string             `db:"id" json:"id"`
	UniversalID    kernel.UniversalID `db:"universal_id" json:"universal_id"`
	Method         string             `db:"method" json:"method"`
	IdentifierHash string             `db:"identifier_hash" json:"-"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	LastSeenAt     time.Time          `db:"last_seen_at" json:"last_seen_at"`
}

// HashIdentifier combines method and raw identifier before hashing, so the
// same identifier string under two different methods hashes differently.
func HashIdentifier(method, identifier string) string {
	sum := sha256.Sum256([]byte(method + ":" + identifier))
	return hex.EncodeToString(sum[:])
}

// ResolveOptions controls resolve behavior.
type ResolveOptions struct {
	CreateIfMissing bool
	PrimaryEmail    string
}

// ResolvedIdentity is what resolve() returns on success.
type ResolvedIdentity struct {
	UniversalID  kernel.UniversalID
	PrimaryEmail string
	UserID       *kernel.UserID
}

var ErrRegistry = errx.NewRegistry("UAI")

var (
	CodeNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "no linked identity")
	CodeLinkFailed   = ErrRegistry.Register("LINK_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to link credential")
	CodeMissingEmail = ErrRegistry.Register("MISSING_EMAIL", errx.TypeValidation, http.StatusBadRequest, "primary email required to create identity")
)

func ErrNotFound() *errx.Error     { return ErrRegistry.New(CodeNotFound) }
func ErrLinkFailed() *errx.Error   { return ErrRegistry.New(CodeLinkFailed) }
func ErrMissingEmail() *errx.Error { return ErrRegistry.New(CodeMissingEmail) }
