package authinfra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPIdentityProvider_VerifyPassword_Success(t *testing.T) {
	var gotGrantType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotGrantType = body["grant_type"]
		_ = json.NewEncoder(w).Encode(idpTokenResponse{
			Email: body["username"], Name: "User", OrganizationID: "org-1", RefreshToken: "refresh-raw",
		})
	}))
	defer server.Close()

	p := NewHTTPIdentityProvider(server.URL)
	identity, err := p.VerifyPassword(context.Background(), "u@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "password", gotGrantType)
	assert.Equal(t, "u@example.com", identity.Email)
	assert.Equal(t, "org-1", identity.OrganizationID)
}

func TestHTTPIdentityProvider_VerifyPassword_RejectedByIdP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewHTTPIdentityProvider(server.URL)
	_, err := p.VerifyPassword(context.Background(), "u@example.com", "wrong")
	require.Error(t, err)
}

func TestHTTPIdentityProvider_RefreshIdentity_Success(t *testing.T) {
	var gotGrantType, gotRefreshToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotGrantType = body["grant_type"]
		gotRefreshToken = body["refresh_token"]
		_ = json.NewEncoder(w).Encode(idpTokenResponse{Email: "u@example.com", Name: "User", OrganizationID: "org-1"})
	}))
	defer server.Close()

	p := NewHTTPIdentityProvider(server.URL)
	identity, err := p.RefreshIdentity(context.Background(), "stale-refresh-token")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", gotGrantType)
	assert.Equal(t, "stale-refresh-token", gotRefreshToken)
	assert.Equal(t, "u@example.com", identity.Email)
}

func TestHTTPIdentityProvider_RefreshIdentity_UpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	server.Close()

	p := NewHTTPIdentityProvider(server.URL)
	_, err := p.RefreshIdentity(context.Background(), "token")
	require.Error(t, err)
}

func TestHTTPIdentityProvider_VerifyPassword_MalformedResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	p := NewHTTPIdentityProvider(server.URL)
	_, err := p.VerifyPassword(context.Background(), "u@example.com", "pw")
	require.Error(t, err)
}
