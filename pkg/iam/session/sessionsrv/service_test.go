package sessionsrv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/iam/session"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

type fakeSessionRepo struct {
	byID   map[kernel.SessionID]*session.Session
	byHash map[string]*session.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		byID:   map[kernel.SessionID]*session.Session{},
		byHash: map[string]*session.Session{},
	}
}

func (f *fakeSessionRepo) Save(ctx context.Context, s session.Session) error {
	f.byID[s.ID] = &s
	f.byHash[s.TokenHash] = &s
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id kernel.SessionID) (*session.Session, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, session.ErrNotFound()
	}
	return s, nil
}

func (f *fakeSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	s, ok := f.byHash[tokenHash]
	if !ok {
		return nil, session.ErrNotFound()
	}
	return s, nil
}

func (f *fakeSessionRepo) FindByUser(ctx context.Context, userID kernel.UserID) ([]*session.Session, error) {
	var out []*session.Session
	for _, s := range f.byID {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) FindActiveByUserAndPlatform(ctx context.Context, userID kernel.UserID, platform kernel.Platform) (*session.Session, error) {
	for _, s := range f.byID {
		if s.UserID == userID && s.Platform == platform && s.IsValid() {
			return s, nil
		}
	}
	return nil, session.ErrNotFound()
}

func (f *fakeSessionRepo) UpdateActivity(ctx context.Context, id kernel.SessionID) error {
	if s, ok := f.byID[id]; ok {
		s.LastActivity = time.Now()
	}
	return nil
}

func (f *fakeSessionRepo) Revoke(ctx context.Context, id kernel.SessionID) error {
	s, ok := f.byID[id]
	if !ok {
		return session.ErrNotFound()
	}
	now := time.Now()
	s.RevokedAt = &now
	return nil
}

func (f *fakeSessionRepo) RevokeAllForUser(ctx context.Context, userID kernel.UserID) error {
	now := time.Now()
	for _, s := range f.byID {
		if s.UserID == userID {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeSessionRepo) CleanExpired(ctx context.Context) error { return nil }

type fakeNotifier struct {
	notified chan kernel.SessionID
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notified: make(chan kernel.SessionID, 10)}
}

func (f *fakeNotifier) NotifySessionRevoked(userID kernel.UserID, sessionID kernel.SessionID) {
	f.notified <- sessionID
}

func (f *fakeNotifier) awaitNotification(t *testing.T) kernel.SessionID {
	t.Helper()
	select {
	case id := <-f.notified:
		return id
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for revocation notification")
		return ""
	}
}

func TestService_Create_FirstSessionForPlatform(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, time.Hour)

	userID := kernel.NewUserID("user-1")
	sess, raw, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "1.2.3.4", "agent")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, userID, sess.UserID)
	assert.False(t, sess.IsRevoked())
}

func TestService_Create_RevokesExistingSessionOnSamePlatform(t *testing.T) {
	repo := newFakeSessionRepo()
	notifier := newFakeNotifier()
	svc := NewService(repo, notifier, time.Hour)

	userID := kernel.NewUserID("user-1")
	first, _, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)

	_, _, err = svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)

	notified := notifier.awaitNotification(t)
	assert.Equal(t, first.ID, notified)

	reloaded, err := repo.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsRevoked())
}

func TestService_Create_DifferentPlatformsCoexist(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, time.Hour)

	userID := kernel.NewUserID("user-1")
	web, _, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)
	cli, _, err := svc.Create(context.Background(), userID, kernel.PlatformCLI, "", "")
	require.NoError(t, err)

	assert.False(t, web.IsRevoked())
	assert.False(t, cli.IsRevoked())
}

func TestService_Validate_RejectsRevoked(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, time.Hour)

	userID := kernel.NewUserID("user-1")
	sess, raw, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), userID, sess.ID))

	_, err = svc.Validate(context.Background(), raw)
	require.Error(t, err)
}

func TestService_Validate_RejectsExpired(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, time.Hour)

	userID := kernel.NewUserID("user-1")
	sess, raw, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)

	repo.byID[sess.ID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.Validate(context.Background(), raw)
	require.Error(t, err)
}

func TestService_Validate_AcceptsFreshSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, time.Hour)

	userID := kernel.NewUserID("user-1")
	_, raw, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)

	validated, err := svc.Validate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, userID, validated.UserID)
}

func TestService_Revoke_NotifiesRealtimeHub(t *testing.T) {
	repo := newFakeSessionRepo()
	notifier := newFakeNotifier()
	svc := NewService(repo, notifier, time.Hour)

	userID := kernel.NewUserID("user-1")
	sess, _, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), userID, sess.ID))
	assert.Equal(t, sess.ID, notifier.awaitNotification(t))
}

func TestService_RevokeAll_EndsEverySession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, time.Hour)

	userID := kernel.NewUserID("user-1")
	web, _, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)
	cli, _, err := svc.Create(context.Background(), userID, kernel.PlatformCLI, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(context.Background(), userID))

	assert.True(t, repo.byID[web.ID].IsRevoked())
	assert.True(t, repo.byID[cli.ID].IsRevoked())
}

func TestService_List_ReturnsAllSessionsForUser(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, time.Hour)

	userID := kernel.NewUserID("user-1")
	_, _, err := svc.Create(context.Background(), userID, kernel.PlatformWeb, "", "")
	require.NoError(t, err)
	_, _, err = svc.Create(context.Background(), userID, kernel.PlatformCLI, "", "")
	require.NoError(t, err)

	sessions, err := svc.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestService_Create_DefaultsTTLWhenZero(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, nil, 0)

	sess, _, err := svc.Create(context.Background(), kernel.NewUserID("user-1"), kernel.PlatformWeb, "", "")
	require.NoError(t, err)
	assert.True(t, sess.ExpiresAt.After(time.Now().Add(6*24*time.Hour)))
}
