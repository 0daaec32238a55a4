package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth/authsrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/onetimecode"
	"github.com/lanonasis/auth-gateway/pkg/iam/session"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

type stubIdP struct {
	identity *authsrv.IdPIdentity
	err      error
}

func (s stubIdP) VerifyPassword(ctx context.Context, email, password string) (*authsrv.IdPIdentity, error) {
	return s.identity, s.err
}

func (s stubIdP) RefreshIdentity(ctx context.Context, refreshToken string) (*authsrv.IdPIdentity, error) {
	return s.identity, s.err
}

type stubUserRepo struct{ users map[kernel.UserID]*user.User }

func newStubUserRepo() *stubUserRepo { return &stubUserRepo{users: map[kernel.UserID]*user.User{}} }

func (r *stubUserRepo) Save(ctx context.Context, u user.User) error { return nil }
func (r *stubUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound()
	}
	return u, nil
}
func (r *stubUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, user.ErrNotFound()
}
func (r *stubUserRepo) FindOrCreateFromIdentity(ctx context.Context, email, name string, orgID kernel.OrganizationID) (*user.User, error) {
	u := &user.User{ID: kernel.NewUserID(email), Email: email, Name: name, OrganizationID: orgID, IsActive: true}
	r.users[u.ID] = u
	return u, nil
}

type stubSessionFacade struct{}

func (stubSessionFacade) Create(ctx context.Context, userID kernel.UserID, platform kernel.Platform, ip, userAgent string) (*session.Session, string, error) {
	return &session.Session{ID: kernel.NewSessionID("sess-1"), UserID: userID}, "refresh-raw", nil
}
func (stubSessionFacade) Validate(ctx context.Context, rawToken string) (*session.Session, error) {
	return nil, nil
}
func (stubSessionFacade) Revoke(ctx context.Context, userID kernel.UserID, id kernel.SessionID) error {
	return nil
}
func (stubSessionFacade) RevokeAll(ctx context.Context, userID kernel.UserID) error { return nil }

type stubTokenRepo struct{}

func (stubTokenRepo) SaveRefreshToken(ctx context.Context, token auth.RefreshToken) error { return nil }
func (stubTokenRepo) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	return nil, auth.ErrInvalidRefreshToken()
}
func (stubTokenRepo) RevokeRefreshToken(ctx context.Context, id string) error             { return nil }
func (stubTokenRepo) RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error { return nil }
func (stubTokenRepo) CleanExpiredTokens(ctx context.Context) error                        { return nil }

type stubAudit struct{}

func (stubAudit) LogLoginAttempt(ctx context.Context, userID kernel.UserID, method string, success bool, ip, userAgent string) {
}
func (stubAudit) LogLogout(ctx context.Context, userID kernel.UserID, ip string)      {}
func (stubAudit) LogTokenRefresh(ctx context.Context, userID kernel.UserID, ip string) {}
func (stubAudit) LogAdminBypass(ctx context.Context, adminEmail string, ip string)     {}

// stubOnetimeStore hands back whatever refresh token it was given, keyed by
// a sequential code ID, standing in for onetimesrv.Service across the
// package boundary.
type stubOnetimeStore struct {
	seq   int
	codes map[string]string
}

func newStubOnetimeStore() *stubOnetimeStore {
	return &stubOnetimeStore{codes: map[string]string{}}
}

func (s *stubOnetimeStore) issue(ctx context.Context, userID kernel.UserID, refreshToken, redirectTo, state string) (*onetimecode.Code, error) {
	s.seq++
	id := fmt.Sprintf("code-%d", s.seq)
	s.codes[id] = refreshToken
	return &onetimecode.Code{ID: id, UserID: userID, RedirectTo: redirectTo, State: state, ExpiresAt: time.Now().Add(120 * time.Second)}, nil
}

func (s *stubOnetimeStore) exchange(ctx context.Context, id string) (kernel.UserID, string, error) {
	refreshToken, ok := s.codes[id]
	if !ok {
		return "", "", onetimecode.ErrInvalidCode()
	}
	delete(s.codes, id)
	return kernel.NewUserID(""), refreshToken, nil
}

func newTestApp(idp stubIdP) *fiber.App {
	jwtSvc := auth.NewJWTService("secret", time.Hour, 24*time.Hour, "issuer")
	svc := authsrv.NewService(idp, newStubUserRepo(), stubSessionFacade{}, stubTokenRepo{}, jwtSvc, stubAudit{}, nil)
	onetime := newStubOnetimeStore()
	svc.WithOnetimeCode(onetime.issue, onetime.exchange)
	app := fiber.New()
	NewHandlers(svc).RegisterRoutes(app)
	return app
}

func TestLogin_Success(t *testing.T) {
	app := newTestApp(stubIdP{identity: &authsrv.IdPIdentity{Email: "u@example.com", Name: "User", OrganizationID: "org-1"}})

	body, _ := json.Marshal(map[string]string{"email": "u@example.com", "password": "pw"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out authsrv.LoginResult
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.NotEmpty(t, out.OneTimeCode)
	assert.InDelta(t, 120, out.ExpiresIn, 2)
}

func TestLogin_WithRedirectTo_Returns302(t *testing.T) {
	app := newTestApp(stubIdP{identity: &authsrv.IdPIdentity{Email: "u@example.com", Name: "User", OrganizationID: "org-1"}})

	body, _ := json.Marshal(map[string]string{
		"email": "u@example.com", "password": "pw",
		"redirect_to": "https://app.test/cb", "state": "xyz",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	assert.Contains(t, location, "https://app.test/cb?code=")
	assert.Contains(t, location, "state=xyz")
}

func TestLogin_InvalidCredentialsReturns401(t *testing.T) {
	app := newTestApp(stubIdP{err: auth.ErrInvalidCredential()})

	body, _ := json.Marshal(map[string]string{"email": "u@example.com", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_MalformedBodyReturns400(t *testing.T) {
	app := newTestApp(stubIdP{})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout_AlwaysReturnsSuccessBody(t *testing.T) {
	app := newTestApp(stubIdP{})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]bool
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out["success"])
}
