// Package onetimesrv implements issuance and single-use redemption of
// cross-origin login hand-off codes.
package onetimesrv

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/onetimecode"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// Service issues and redeems one-time codes.
type Service struct {
	repo   onetimecode.Repository
	cipher *onetimecode.Cipher
	ttl    time.Duration
}

func NewService(repo onetimecode.Repository, cipher *onetimecode.Cipher, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = 120 * time.Second
	}
	return &Service{repo: repo, cipher: cipher, ttl: ttl}
}

// Issue binds a refresh token to a new single-use code, encrypting the
// token at rest. redirectTo/state are carried through unchanged so the
// caller can build the redirect URL.
func (s *Service) Issue(ctx context.Context, userID kernel.UserID, refreshToken, redirectTo, state string) (*onetimecode.Code, error) {
	encrypted, err := s.cipher.Encrypt(refreshToken)
	if err != nil {
		return nil, err
	}

	id, err := generateCodeID()
	if err != nil {
		return nil, err
	}

	code := onetimecode.Code{
		ID:                    id,
		UserID:                userID,
		EncryptedRefreshToken: encrypted,
		RedirectTo:            redirectTo,
		State:                 state,
		ExpiresAt:             time.Now().Add(s.ttl),
		CreatedAt:             time.Now(),
	}
	if err := s.repo.Save(ctx, code); err != nil {
		return nil, err
	}
	return &code, nil
}

// Exchange redeems a code exactly once, returning the decrypted refresh
// token it was bound to.
func (s *Service) Exchange(ctx context.Context, id string) (userID kernel.UserID, refreshToken string, err error) {
	code, err := s.repo.FindAndConsume(ctx, id)
	if err != nil {
		return kernel.UserID(""), "", onetimecode.ErrInvalidCode()
	}
	if code.IsExpired() {
		return kernel.UserID(""), "", onetimecode.ErrExpired()
	}

	plaintext, err := s.cipher.Decrypt(code.EncryptedRefreshToken)
	if err != nil {
		return kernel.UserID(""), "", errx.Wrap(err, "failed to decrypt refresh token", errx.TypeInternal)
	}

	return code.UserID, plaintext, nil
}

func generateCodeID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", errx.Wrap(err, "failed to generate code id", errx.TypeInternal)
	}
	return hex.EncodeToString(buf), nil
}
