// Package apikey implements long-lived API credentials: hashed at rest,
// issued once in full and never recoverable afterward.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

const (
	KeyPrefixLive = "lnk_live"
	KeyPrefixTest = "lnk_test"
)

var base62Alphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// APIKey is a long-lived credential scoped to an organization and, optionally,
// a single user within it. Only KeyHash is persisted; the raw secret is shown
// to the caller exactly once, at creation or rotation time.
type APIKey struct {
	ID             kernel.APIKeyID       `db:"id" json:"id"`
	KeyHash        string                `db:"key_hash" json:"-"`
	KeyPrefix      string                `db:"key_prefix" json:"key_prefix"`
	OrganizationID kernel.OrganizationID `db:"organization_id" json:"organization_id"`
	UserID         *kernel.UserID        `db:"user_id" json:"user_id,omitempty"`
	Name           string                `db:"name" json:"name"`
	Description    string                `db:"description" json:"description,omitempty"`
	Scopes         []string              `db:"scopes" json:"scopes"`
	AccessLevel    string                `db:"access_level" json:"access_level"`
	IsActive       bool                  `db:"is_active" json:"is_active"`
	// LegacyPlaintext holds the raw secret for keys issued before hashing
	// was enforced. Nil once the key has been matched by its plaintext and rehashed.
	LegacyPlaintext *string    `db:"legacy_key_plaintext" json:"-"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	LastUsedAt      *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	RevokedAt       *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// AccessLevel values mirror the three-tier model keys are issued under.
const (
	AccessLevelReadOnly  = "read_only"
	AccessLevelReadWrite = "read_write"
	AccessLevelAdmin     = "admin"
)

func (k *APIKey) IsExpired() bool { return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt) }
func (k *APIKey) IsRevoked() bool { return k.RevokedAt != nil }
func (k *APIKey) IsValid() bool   { return k.IsActive && !k.IsExpired() && !k.IsRevoked() }

func (k *APIKey) Revoke() {
	now := time.Now().UTC()
	k.IsActive = false
	k.RevokedAt = &now
	k.UpdatedAt = now
}

// GeneratedKey carries the raw secret alongside the prefix used to route
// lookups; the raw value is never stored.
type GeneratedKey struct {
	Key       string
	KeyPrefix string
}

// Generate mints a new `<prefix>_<base62>` secret whose body is 32 random
// base62 characters (about 190 bits of entropy).
func Generate(prefix string) (GeneratedKey, error) {
	body, err := randomBase62(32)
	if err != nil {
		return GeneratedKey{}, err
	}

	return GeneratedKey{
		Key:       prefix + "_" + body,
		KeyPrefix: prefix,
	}, nil
}

func randomBase62(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base62Alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errx.Wrap(err, "failed to generate random key body", errx.TypeInternal)
		}
		out[i] = base62Alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Hash returns the SHA-256 hex digest of a raw key. This is the only form
// ever persisted.
func Hash(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// ValidateFormat checks that a presented key at least has the shape of one
// this service issues, before paying for a hash+lookup round trip.
func ValidateFormat(rawKey string) bool {
	if rawKey == "" {
		return false
	}
	parts := strings.SplitN(rawKey, "_", 3)
	if len(parts) != 3 {
		return false
	}
	prefix := parts[0] + "_" + parts[1]
	if prefix != KeyPrefixLive && prefix != KeyPrefixTest {
		return false
	}
	return len(parts[2]) >= 16
}

// CreateRequest describes a new API key.
type CreateRequest struct {
	UserID      *kernel.UserID
	Name        string
	Description string
	Scopes      []string
	AccessLevel string `json:"access_level"`
	Live        bool
	ExpiresIn   *int `json:"expires_in"` // days
}

// UpdateRequest patches a subset of an API key's metadata.
type UpdateRequest struct {
	Name        *string
	Description *string
	Scopes      []string
	AccessLevel *string
	IsActive    *bool
}

// DTO is the caller-facing projection of an API key; it never carries
// KeyHash or the raw secret.
type DTO struct {
	ID             string     `json:"id"`
	KeyPrefix      string     `json:"key_prefix"`
	OrganizationID string     `json:"organization_id"`
	UserID         *string    `json:"user_id,omitempty"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Scopes         []string   `json:"scopes"`
	AccessLevel    string     `json:"access_level"`
	IsActive       bool       `json:"is_active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (k *APIKey) ToDTO() DTO {
	var userID *string
	if k.UserID != nil {
		s := k.UserID.String()
		userID = &s
	}
	return DTO{
		ID:             k.ID.String(),
		KeyPrefix:      k.KeyPrefix,
		OrganizationID: k.OrganizationID.String(),
		UserID:         userID,
		Name:           k.Name,
		Description:    k.Description,
		Scopes:         k.Scopes,
		AccessLevel:    k.AccessLevel,
		IsActive:       k.IsActive,
		ExpiresAt:      k.ExpiresAt,
		LastUsedAt:     k.LastUsedAt,
		CreatedAt:      k.CreatedAt,
	}
}

// CreateResponse is returned exactly once, at creation or rotation time.
type CreateResponse struct {
	APIKey    DTO    `json:"api_key"`
	SecretKey string `json:"secret_key"`
	Message   string `json:"message"`
}


var ErrRegistry = errx.NewRegistry("APIKEY")

var (
	CodeNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "API key not found")
	CodeInvalid   = ErrRegistry.Register("INVALID", errx.TypeValidation, http.StatusUnauthorized, "invalid API key")
	CodeExpired   = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "API key expired")
	CodeRevoked   = ErrRegistry.Register("REVOKED", errx.TypeAuthorization, http.StatusUnauthorized, "API key revoked")
	CodeDuplicate = ErrRegistry.Register("DUPLICATE", errx.TypeConflict, http.StatusConflict, "API key name already exists")
)

func ErrNotFound() *errx.Error  { return ErrRegistry.New(CodeNotFound) }
func ErrInvalid() *errx.Error   { return ErrRegistry.New(CodeInvalid) }
func ErrExpired() *errx.Error   { return ErrRegistry.New(CodeExpired) }
func ErrRevoked() *errx.Error   { return ErrRegistry.New(CodeRevoked) }
func ErrDuplicate() *errx.Error { return ErrRegistry.New(CodeDuplicate) }
