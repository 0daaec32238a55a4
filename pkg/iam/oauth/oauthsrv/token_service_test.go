package oauthsrv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/iam/session"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

type fakeUserRepo struct {
	byID map[kernel.UserID]*user.User
}

func newFakeUserRepo() *fakeUserRepo { return &fakeUserRepo{byID: map[kernel.UserID]*user.User{}} }

func (f *fakeUserRepo) Save(ctx context.Context, u user.User) error {
	f.byID[u.ID] = &u
	return nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrNotFound()
}

func (f *fakeUserRepo) FindOrCreateFromIdentity(ctx context.Context, email, name string, orgID kernel.OrganizationID) (*user.User, error) {
	return nil, nil
}

type fakeSessionIssuer struct {
	revokedAll map[kernel.UserID]bool
	created    int
}

func newFakeSessionIssuer() *fakeSessionIssuer {
	return &fakeSessionIssuer{revokedAll: map[kernel.UserID]bool{}}
}

func (f *fakeSessionIssuer) Create(ctx context.Context, userID kernel.UserID, platform kernel.Platform, ip, userAgent string) (*session.Session, string, error) {
	f.created++
	raw := "refresh-token-raw"
	if f.created > 1 {
		raw = fmt.Sprintf("refresh-token-raw-%d", f.created)
	}
	return &session.Session{ID: kernel.NewSessionID("sess-1"), UserID: userID, Platform: platform}, raw, nil
}

func (f *fakeSessionIssuer) RevokeAll(ctx context.Context, userID kernel.UserID) error {
	f.revokedAll[userID] = true
	return nil
}

// fakeTokenRepo is an in-memory stand-in for auth.TokenRepository, keyed by
// token hash so ExchangeRefreshToken's lookup/rotate/reuse-detection flow
// can be exercised without a real store.
type fakeTokenRepo struct {
	byHash map[string]*auth.RefreshToken
	byID   map[string]*auth.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{byHash: map[string]*auth.RefreshToken{}, byID: map[string]*auth.RefreshToken{}}
}

func (f *fakeTokenRepo) SaveRefreshToken(ctx context.Context, token auth.RefreshToken) error {
	t := token
	f.byHash[t.TokenHash] = &t
	f.byID[t.ID] = &t
	return nil
}

func (f *fakeTokenRepo) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	t, ok := f.byHash[tokenHash]
	if !ok {
		return nil, auth.ErrInvalidRefreshToken()
	}
	return t, nil
}

func (f *fakeTokenRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	if t, ok := f.byID[id]; ok {
		t.IsRevoked = true
	}
	return nil
}

func (f *fakeTokenRepo) RevokeAllUserTokens(ctx context.Context, userID kernel.UserID) error {
	for _, t := range f.byID {
		if t.UserID == userID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (f *fakeTokenRepo) CleanExpiredTokens(ctx context.Context) error { return nil }

func newTestTokenService() (*TokenService, *fakeClientRepo, *fakeCodeRepo, *fakeUserRepo) {
	clientRepo := newFakeClientRepo()
	codeRepo := newFakeCodeRepo()
	userRepo := newFakeUserRepo()
	clientSvc := NewClientService(clientRepo)
	jwtSvc := auth.NewJWTService("secret", time.Hour, 24*time.Hour, "issuer")
	tokenSvc := NewTokenService(clientSvc, codeRepo, newFakeDeviceRepo(), userRepo, newFakeSessionIssuer(), newFakeTokenRepo(), jwtSvc)
	return tokenSvc, clientRepo, codeRepo, userRepo
}

func TestTokenService_ExchangeAuthorizationCode_PublicClientWithPKCE(t *testing.T) {
	tokenSvc, clientRepo, codeRepo, userRepo := newTestTokenService()

	clientID := kernel.NewClientID("client-1")
	require.NoError(t, clientRepo.Save(context.Background(), oauth.Client{
		ClientID:   clientID,
		ClientType: oauth.ClientTypePublic,
		Status:     oauth.ClientStatusActive,
	}))

	userID := kernel.NewUserID("user-1")
	require.NoError(t, userRepo.Save(context.Background(), user.User{ID: userID, Email: "u@example.com"}))

	verifier := "verifier-value-0123456789"
	challenge := sha256Challenge(verifier)
	require.NoError(t, codeRepo.Save(context.Background(), oauth.AuthorizationCode{
		Code:                "auth-code-1",
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         "https://app.test/cb",
		CodeChallenge:       challenge,
		CodeChallengeMethod: oauth.ChallengeMethodS256,
		ExpiresAt:           time.Now().Add(time.Minute),
	}))

	pair, err := tokenSvc.ExchangeAuthorizationCode(context.Background(), ExchangeAuthorizationCodeRequest{
		Code:         "auth-code-1",
		RedirectURI:  "https://app.test/cb",
		ClientID:     clientID,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "refresh-token-raw", pair.RefreshToken)
}

func TestTokenService_ExchangeAuthorizationCode_BadVerifierRejected(t *testing.T) {
	tokenSvc, clientRepo, codeRepo, userRepo := newTestTokenService()

	clientID := kernel.NewClientID("client-1")
	require.NoError(t, clientRepo.Save(context.Background(), oauth.Client{
		ClientID:   clientID,
		ClientType: oauth.ClientTypePublic,
		Status:     oauth.ClientStatusActive,
	}))
	userID := kernel.NewUserID("user-1")
	require.NoError(t, userRepo.Save(context.Background(), user.User{ID: userID}))

	require.NoError(t, codeRepo.Save(context.Background(), oauth.AuthorizationCode{
		Code:                "auth-code-1",
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         "https://app.test/cb",
		CodeChallenge:       sha256Challenge("correct-verifier"),
		CodeChallengeMethod: oauth.ChallengeMethodS256,
		ExpiresAt:           time.Now().Add(time.Minute),
	}))

	_, err := tokenSvc.ExchangeAuthorizationCode(context.Background(), ExchangeAuthorizationCodeRequest{
		Code:         "auth-code-1",
		RedirectURI:  "https://app.test/cb",
		ClientID:     clientID,
		CodeVerifier: "wrong-verifier",
	})
	require.Error(t, err)
}

func TestTokenService_ExchangeAuthorizationCode_CannotBeReplayed(t *testing.T) {
	tokenSvc, clientRepo, codeRepo, userRepo := newTestTokenService()

	clientID := kernel.NewClientID("client-1")
	require.NoError(t, clientRepo.Save(context.Background(), oauth.Client{
		ClientID: clientID, ClientType: oauth.ClientTypePublic, Status: oauth.ClientStatusActive,
	}))
	userID := kernel.NewUserID("user-1")
	require.NoError(t, userRepo.Save(context.Background(), user.User{ID: userID}))
	require.NoError(t, codeRepo.Save(context.Background(), oauth.AuthorizationCode{
		Code: "auth-code-1", ClientID: clientID, UserID: userID,
		RedirectURI: "https://app.test/cb", CodeChallenge: sha256Challenge("v"),
		CodeChallengeMethod: oauth.ChallengeMethodS256, ExpiresAt: time.Now().Add(time.Minute),
	}))

	req := ExchangeAuthorizationCodeRequest{Code: "auth-code-1", RedirectURI: "https://app.test/cb", ClientID: clientID, CodeVerifier: "v"}
	_, err := tokenSvc.ExchangeAuthorizationCode(context.Background(), req)
	require.NoError(t, err)

	_, err = tokenSvc.ExchangeAuthorizationCode(context.Background(), req)
	require.Error(t, err)
}

func TestTokenService_ExchangeAuthorizationCode_RedirectMismatch(t *testing.T) {
	tokenSvc, clientRepo, codeRepo, userRepo := newTestTokenService()

	clientID := kernel.NewClientID("client-1")
	require.NoError(t, clientRepo.Save(context.Background(), oauth.Client{
		ClientID: clientID, ClientType: oauth.ClientTypePublic, Status: oauth.ClientStatusActive,
	}))
	userID := kernel.NewUserID("user-1")
	require.NoError(t, userRepo.Save(context.Background(), user.User{ID: userID}))
	require.NoError(t, codeRepo.Save(context.Background(), oauth.AuthorizationCode{
		Code: "auth-code-1", ClientID: clientID, UserID: userID,
		RedirectURI: "https://app.test/cb", ExpiresAt: time.Now().Add(time.Minute),
	}))

	_, err := tokenSvc.ExchangeAuthorizationCode(context.Background(), ExchangeAuthorizationCodeRequest{
		Code: "auth-code-1", RedirectURI: "https://different.test/cb", ClientID: clientID,
	})
	require.Error(t, err)
}

func TestTokenService_ExchangeRefreshToken_RotatesToken(t *testing.T) {
	tokenSvc, clientRepo, codeRepo, userRepo := newTestTokenService()

	clientID := kernel.NewClientID("client-1")
	require.NoError(t, clientRepo.Save(context.Background(), oauth.Client{
		ClientID: clientID, ClientType: oauth.ClientTypePublic, Status: oauth.ClientStatusActive,
	}))
	userID := kernel.NewUserID("user-1")
	require.NoError(t, userRepo.Save(context.Background(), user.User{ID: userID, Email: "u@example.com"}))
	require.NoError(t, codeRepo.Save(context.Background(), oauth.AuthorizationCode{
		Code: "auth-code-1", ClientID: clientID, UserID: userID,
		RedirectURI: "https://app.test/cb", CodeChallenge: sha256Challenge("v"),
		CodeChallengeMethod: oauth.ChallengeMethodS256, ExpiresAt: time.Now().Add(time.Minute),
	}))

	pair, err := tokenSvc.ExchangeAuthorizationCode(context.Background(), ExchangeAuthorizationCodeRequest{
		Code: "auth-code-1", RedirectURI: "https://app.test/cb", ClientID: clientID, CodeVerifier: "v",
	})
	require.NoError(t, err)

	rotated, err := tokenSvc.ExchangeRefreshToken(context.Background(), ExchangeRefreshTokenRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
}

func TestTokenService_ExchangeRefreshToken_ReuseRevokesChain(t *testing.T) {
	tokenSvc, clientRepo, codeRepo, userRepo := newTestTokenService()

	clientID := kernel.NewClientID("client-1")
	require.NoError(t, clientRepo.Save(context.Background(), oauth.Client{
		ClientID: clientID, ClientType: oauth.ClientTypePublic, Status: oauth.ClientStatusActive,
	}))
	userID := kernel.NewUserID("user-1")
	require.NoError(t, userRepo.Save(context.Background(), user.User{ID: userID, Email: "u@example.com"}))
	require.NoError(t, codeRepo.Save(context.Background(), oauth.AuthorizationCode{
		Code: "auth-code-1", ClientID: clientID, UserID: userID,
		RedirectURI: "https://app.test/cb", CodeChallenge: sha256Challenge("v"),
		CodeChallengeMethod: oauth.ChallengeMethodS256, ExpiresAt: time.Now().Add(time.Minute),
	}))

	pair, err := tokenSvc.ExchangeAuthorizationCode(context.Background(), ExchangeAuthorizationCodeRequest{
		Code: "auth-code-1", RedirectURI: "https://app.test/cb", ClientID: clientID, CodeVerifier: "v",
	})
	require.NoError(t, err)

	_, err = tokenSvc.ExchangeRefreshToken(context.Background(), ExchangeRefreshTokenRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	_, err = tokenSvc.ExchangeRefreshToken(context.Background(), ExchangeRefreshTokenRequest{RefreshToken: pair.RefreshToken})
	require.Error(t, err)
}
