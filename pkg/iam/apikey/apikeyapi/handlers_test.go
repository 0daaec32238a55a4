package apikeyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/iam/apikey"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey/apikeysrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

const testOrg = kernel.OrganizationID("org-1")

type stubKeyRepo struct {
	byID map[kernel.APIKeyID]*apikey.APIKey
}

func newStubKeyRepo() *stubKeyRepo { return &stubKeyRepo{byID: map[kernel.APIKeyID]*apikey.APIKey{}} }

func (r *stubKeyRepo) Save(ctx context.Context, key apikey.APIKey) error {
	r.byID[key.ID] = &key
	return nil
}
func (r *stubKeyRepo) FindByID(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) (*apikey.APIKey, error) {
	k, ok := r.byID[id]
	if !ok || k.OrganizationID != orgID {
		return nil, apikey.ErrNotFound()
	}
	return k, nil
}
func (r *stubKeyRepo) FindByHash(ctx context.Context, keyHash string) (*apikey.APIKey, error) {
	return nil, apikey.ErrNotFound()
}
func (r *stubKeyRepo) FindByLegacyPlaintext(ctx context.Context, rawKey string) (*apikey.APIKey, error) {
	return nil, apikey.ErrNotFound()
}
func (r *stubKeyRepo) FindByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	var out []*apikey.APIKey
	for _, k := range r.byID {
		if k.OrganizationID == orgID {
			out = append(out, k)
		}
	}
	return out, nil
}
func (r *stubKeyRepo) FindActiveByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	return r.FindByOrganization(ctx, orgID)
}
func (r *stubKeyRepo) FindByUser(ctx context.Context, userID kernel.UserID, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	return nil, nil
}
func (r *stubKeyRepo) Delete(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) error {
	delete(r.byID, id)
	return nil
}
func (r *stubKeyRepo) UpdateLastUsed(ctx context.Context, id kernel.APIKeyID) error { return nil }
func (r *stubKeyRepo) RehashLegacy(ctx context.Context, id kernel.APIKeyID, keyHash string) error {
	return nil
}

type stubUserRepo struct{}

func (stubUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	return &user.User{ID: id, IsActive: true}, nil
}
func (stubUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, user.ErrNotFound()
}
func (stubUserRepo) FindOrCreateFromIdentity(ctx context.Context, email, name string, orgID kernel.OrganizationID) (*user.User, error) {
	return nil, nil
}
func (stubUserRepo) Save(ctx context.Context, u user.User) error { return nil }

func authMiddleware(c *fiber.Ctx) error {
	c.Locals("auth", &kernel.AuthContext{OrganizationID: testOrg, Scopes: []string{"*"}})
	return c.Next()
}

func newTestApp() (*fiber.App, *stubKeyRepo) {
	repo := newStubKeyRepo()
	svc := apikeysrv.NewService(repo, stubUserRepo{})
	app := fiber.New()
	NewHandlers(svc).RegisterRoutes(app, authMiddleware)
	return app, repo
}

func TestCreate_Success(t *testing.T) {
	app, _ := newTestApp()

	body, _ := json.Marshal(apikey.CreateRequest{Name: "ci-key", AccessLevel: "read"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/api-keys/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out apikey.CreateResponse
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.NotEmpty(t, out.SecretKey)
}

func TestList_ReturnsCreatedKeys(t *testing.T) {
	app, _ := newTestApp()

	createBody, _ := json.Marshal(apikey.CreateRequest{Name: "ci-key", AccessLevel: "read"})
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/api-keys/", bytes.NewReader(createBody))
	createReq.Header.Set("Content-Type", "application/json")
	_, err := app.Test(createReq)
	require.NoError(t, err)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/api-keys/", nil)
	resp, err := app.Test(listReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out kernel.Paginated[apikey.DTO]
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 1, out.Page.Total)
	assert.Len(t, out.Items, 1)
}

func TestGet_NotFoundReturns404(t *testing.T) {
	app, _ := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/api-keys/unknown-id", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRevoke_DeactivatesKey(t *testing.T) {
	app, _ := newTestApp()

	createBody, _ := json.Marshal(apikey.CreateRequest{Name: "ci-key", AccessLevel: "read"})
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/api-keys/", bytes.NewReader(createBody))
	createReq.Header.Set("Content-Type", "application/json")
	createResp, err := app.Test(createReq)
	require.NoError(t, err)

	var created apikey.CreateResponse
	raw, _ := io.ReadAll(createResp.Body)
	require.NoError(t, json.Unmarshal(raw, &created))

	revokeReq := httptest.NewRequest(http.MethodDelete, "/api/v1/api-keys/"+created.APIKey.ID, nil)
	revokeResp, err := app.Test(revokeReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, revokeResp.StatusCode)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/api-keys/"+created.APIKey.ID, nil)
	getResp, err := app.Test(getReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	var dto apikey.DTO
	getRaw, _ := io.ReadAll(getResp.Body)
	require.NoError(t, json.Unmarshal(getRaw, &dto))
	assert.False(t, dto.IsActive)
}
