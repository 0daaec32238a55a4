// Package adminsrv implements the emergency bypass login: a constant-time
// password check against a locally stored bcrypt hash, independent of
// whatever upstream identity provider the regular login path uses.
package adminsrv

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lanonasis/auth-gateway/pkg/iam/admin"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
	"github.com/lanonasis/auth-gateway/pkg/outbox"
)

const (
	bypassRole = "admin_override"
	bypassTTL  = 24 * time.Hour
)

// Service authenticates bypass accounts and issues the override token.
type Service struct {
	repo   admin.Repository
	jwt    *auth.JWTService
	events outbox.Store
}

func NewService(repo admin.Repository, jwt *auth.JWTService, events outbox.Store) *Service {
	return &Service{repo: repo, jwt: jwt, events: events}
}

// Login verifies an emergency account's password and, on success, issues a
// 24h token carrying role=admin_override and bypass_all_checks=true. Every
// successful bypass login emits AdminBypassUsed for audit trails.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", admin.ErrInvalidCredentials()
	}
	if !account.IsUsable() {
		return "", admin.ErrDisabled()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", admin.ErrInvalidCredentials()
	}

	token, err := s.jwt.GenerateAccessTokenWithTTL(auth.IssueParams{
		UserID:          kernel.NewUserID("admin:" + account.Email),
		Email:           account.Email,
		Role:            bypassRole,
		BypassAllChecks: true,
		Scopes:          []string{"*"},
	}, bypassTTL)
	if err != nil {
		return "", err
	}

	go func() {
		if uerr := s.repo.UpdateLastUsed(context.Background(), account.Email); uerr != nil {
			logx.WithError(uerr).Warn("adminsrv: failed to update bypass account last_used_at")
		}
	}()

	s.emitBypassUsed(ctx, account.Email)

	return token, nil
}

func (s *Service) emitBypassUsed(ctx context.Context, email string) {
	if s.events == nil {
		return
	}
	event, err := outbox.NewEvent("admin:"+email, "AdminBypassUsed", map[string]string{"email": email})
	if err != nil {
		logx.WithError(err).Warn("adminsrv: failed to build AdminBypassUsed event")
		return
	}
	if err := s.events.Append(ctx, event, nil); err != nil {
		logx.WithError(err).Warn("adminsrv: failed to append AdminBypassUsed event")
	}
}

// EnsureBootstrapped fails startup if no admin accounts are configured, per
// the invariant that at least one enabled bypass account must always exist.
func (s *Service) EnsureBootstrapped(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return admin.ErrNoAccounts()
	}
	return nil
}
