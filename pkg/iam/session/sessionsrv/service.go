// Package sessionsrv implements session lifecycle business logic.
package sessionsrv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/lanonasis/auth-gateway/pkg/asyncx"
	"github.com/lanonasis/auth-gateway/pkg/iam/session"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
)

// Notifier pushes a session-revocation event to connected realtime clients.
// Implemented by pkg/realtime's hub; kept as an interface to avoid session
// depending on the transport layer.
type Notifier interface {
	NotifySessionRevoked(userID kernel.UserID, sessionID kernel.SessionID)
}

// Service implements session creation, lookup, and revocation.
type Service struct {
	repo     session.Repository
	notifier Notifier
	ttl      time.Duration
}

func NewService(repo session.Repository, notifier Notifier, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{repo: repo, notifier: notifier, ttl: ttl}
}

// Create opens a new platform session, revoking any existing session for the
// same user+platform pair first: only one active session per platform is allowed.
func (s *Service) Create(ctx context.Context, userID kernel.UserID, platform kernel.Platform, ip, userAgent string) (*session.Session, string, error) {
	if existing, err := s.repo.FindActiveByUserAndPlatform(ctx, userID, platform); err == nil && existing != nil {
		_ = s.repo.Revoke(ctx, existing.ID)
		if s.notifier != nil {
			asyncx.Do(func() { s.notifier.NotifySessionRevoked(userID, existing.ID) })
		}
	}

	rawToken := uuid.New().String() + uuid.New().String()
	hash := hashToken(rawToken)

	sess := session.Session{
		ID:           kernel.NewSessionID(uuid.New().String()),
		UserID:       userID,
		Platform:     platform,
		TokenHash:    hash,
		IPAddress:    ip,
		UserAgent:    userAgent,
		ExpiresAt:    time.Now().Add(s.ttl),
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, "", err
	}
	return &sess, rawToken, nil
}

// Validate resolves a raw session token to its Session row, rejecting
// expired or revoked sessions.
func (s *Service) Validate(ctx context.Context, rawToken string) (*session.Session, error) {
	sess, err := s.repo.FindByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if sess.IsRevoked() {
		return nil, session.ErrRevoked()
	}
	if sess.IsExpired() {
		return nil, session.ErrExpired()
	}
	asyncx.Do(func() {
		if err := s.repo.UpdateActivity(context.Background(), sess.ID); err != nil {
			logx.WithError(err).WithField("session_id", sess.ID).Warn("sessionsrv: failed to update activity")
		}
	})
	return sess, nil
}

// Revoke ends a single session and pushes a realtime notification.
func (s *Service) Revoke(ctx context.Context, userID kernel.UserID, id kernel.SessionID) error {
	if err := s.repo.Revoke(ctx, id); err != nil {
		return err
	}
	if s.notifier != nil {
		asyncx.Do(func() { s.notifier.NotifySessionRevoked(userID, id) })
	}
	return nil
}

// RevokeAll ends every session for a user, e.g. on password rotation or
// admin-triggered account lockout.
func (s *Service) RevokeAll(ctx context.Context, userID kernel.UserID) error {
	return s.repo.RevokeAllForUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, userID kernel.UserID) ([]*session.Session, error) {
	return s.repo.FindByUser(ctx, userID)
}

// IsRevoked reports whether a session has been revoked or no longer exists,
// letting callers that only hold a session ID (e.g. from a JWT claim) check
// revocation without needing the raw session token.
func (s *Service) IsRevoked(ctx context.Context, id kernel.SessionID) (bool, error) {
	if id.IsEmpty() {
		return true, nil
	}
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return true, nil
	}
	return sess.IsRevoked(), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
