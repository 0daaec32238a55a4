// Package onetimecode implements the cross-origin login hand-off: a
// short-lived, single-use code that carries a refresh token from the login
// response to a redirect target without ever putting the token itself in a
// URL.
package onetimecode

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Code is a single-use authorization code bound to a refresh token and the
// user it was issued for. EncryptedRefreshToken is AES-256-GCM
// ciphertext; the plaintext token is never persisted.
type Code struct {
	ID                    string        `db:"id" json:"id"`
	UserID                kernel.UserID `db:"user_id" json:"user_id"`
	EncryptedRefreshToken string        `db:"encrypted_refresh_token" json:"-"`
	RedirectTo            string        `db:"redirect_to" json:"redirect_to,omitempty"`
	State                 string        `db:"state" json:"state,omitempty"`
	Used                  bool          `db:"used" json:"used"`
	ExpiresAt             time.Time     `db:"expires_at" json:"expires_at"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
}

func (c *Code) IsExpired() bool { return time.Now().After(c.ExpiresAt) }
func (c *Code) IsValid() bool   { return !c.Used && !c.IsExpired() }

// Cipher encrypts and decrypts refresh tokens bound to a one-time code,
// using an operator-provided base64-encoded 256-bit key.
type Cipher struct {
	gcm cipher.AEAD
}

func NewCipher(keyB64 string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, errx.Wrap(err, "invalid onetime code encryption key format", errx.TypeInternal)
	}
	if len(key) != 32 {
		return nil, ErrRegistry.New(CodeInvalidKey)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errx.Wrap(err, "failed to build cipher block", errx.TypeInternal)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errx.Wrap(err, "failed to build GCM cipher", errx.TypeInternal)
	}
	return &Cipher{gcm: gcm}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errx.Wrap(err, "failed to generate nonce", errx.TypeInternal)
	}
	ciphertext := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

func (c *Cipher) Decrypt(ciphertextHex string) (string, error) {
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", errx.Wrap(err, "invalid ciphertext encoding", errx.TypeInternal)
	}
	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrRegistry.New(CodeDecryptFailed)
	}
	nonce, body := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", errx.Wrap(err, "failed to decrypt refresh token", errx.TypeInternal)
	}
	return string(plaintext), nil
}

var ErrRegistry = errx.NewRegistry("ONETIME")

var (
	CodeInvalidCode   = ErrRegistry.Register("INVALID_CODE", errx.TypeValidation, http.StatusBadRequest, "invalid or expired code")
	CodeAlreadyUsed   = ErrRegistry.Register("ALREADY_USED", errx.TypeValidation, http.StatusBadRequest, "code already used")
	CodeExpired       = ErrRegistry.Register("EXPIRED", errx.TypeValidation, http.StatusBadRequest, "code expired")
	CodeInvalidKey    = ErrRegistry.Register("INVALID_KEY", errx.TypeInternal, http.StatusInternalServerError, "invalid encryption key")
	CodeDecryptFailed = ErrRegistry.Register("DECRYPT_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to decrypt code payload")
)

func ErrInvalidCode() *errx.Error { return ErrRegistry.New(CodeInvalidCode) }
func ErrAlreadyUsed() *errx.Error { return ErrRegistry.New(CodeAlreadyUsed) }
func ErrExpired() *errx.Error     { return ErrRegistry.New(CodeExpired) }
