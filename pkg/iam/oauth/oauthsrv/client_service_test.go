package oauthsrv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
)

func TestClientService_Register_Public_NoSecretHash(t *testing.T) {
	svc := NewClientService(newFakeClientRepo())

	client, err := svc.Register(context.Background(), RegisterRequest{
		ClientName:          "cli-tool",
		ClientType:          oauth.ClientTypePublic,
		AllowedRedirectURIs: []string{"http://localhost:8080/cb"},
	})
	require.NoError(t, err)
	assert.True(t, client.RequirePKCE)
	assert.Nil(t, client.ClientSecretHash)
}

func TestClientService_Register_Confidential_HashesSecret(t *testing.T) {
	svc := NewClientService(newFakeClientRepo())

	client, err := svc.Register(context.Background(), RegisterRequest{
		ClientName:   "backend-service",
		ClientType:   oauth.ClientTypeConfidential,
		ClientSecret: "super-secret",
	})
	require.NoError(t, err)
	require.NotNil(t, client.ClientSecretHash)
	assert.NotEqual(t, "super-secret", *client.ClientSecretHash)
	assert.False(t, client.RequirePKCE)
}

func TestClientService_Authenticate_Success(t *testing.T) {
	repo := newFakeClientRepo()
	svc := NewClientService(repo)

	client, err := svc.Register(context.Background(), RegisterRequest{
		ClientName:   "backend-service",
		ClientType:   oauth.ClientTypeConfidential,
		ClientSecret: "super-secret",
	})
	require.NoError(t, err)

	authenticated, err := svc.Authenticate(context.Background(), client.ClientID, "super-secret")
	require.NoError(t, err)
	assert.Equal(t, client.ClientID, authenticated.ClientID)
}

func TestClientService_Authenticate_WrongSecret(t *testing.T) {
	repo := newFakeClientRepo()
	svc := NewClientService(repo)

	client, err := svc.Register(context.Background(), RegisterRequest{
		ClientName:   "backend-service",
		ClientType:   oauth.ClientTypeConfidential,
		ClientSecret: "super-secret",
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), client.ClientID, "wrong")
	require.Error(t, err)
}

func TestClientService_Delete(t *testing.T) {
	repo := newFakeClientRepo()
	svc := NewClientService(repo)

	client, err := svc.Register(context.Background(), RegisterRequest{ClientName: "x", ClientType: oauth.ClientTypePublic})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), client.ClientID))
	_, err = svc.Get(context.Background(), client.ClientID)
	require.Error(t, err)
}
