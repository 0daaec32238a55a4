package apikeysrv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/iam/apikey"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

func ptr[T any](v T) *T { return &v }

type fakeKeyRepo struct {
	byID map[kernel.APIKeyID]*apikey.APIKey
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{byID: map[kernel.APIKeyID]*apikey.APIKey{}}
}

func (f *fakeKeyRepo) Save(ctx context.Context, key apikey.APIKey) error {
	f.byID[key.ID] = &key
	return nil
}

func (f *fakeKeyRepo) FindByID(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) (*apikey.APIKey, error) {
	k, ok := f.byID[id]
	if !ok || k.OrganizationID != orgID {
		return nil, apikey.ErrNotFound()
	}
	return k, nil
}

func (f *fakeKeyRepo) FindByHash(ctx context.Context, keyHash string) (*apikey.APIKey, error) {
	for _, k := range f.byID {
		if k.KeyHash == keyHash {
			return k, nil
		}
	}
	return nil, apikey.ErrNotFound()
}

func (f *fakeKeyRepo) FindByLegacyPlaintext(ctx context.Context, rawKey string) (*apikey.APIKey, error) {
	for _, k := range f.byID {
		if k.LegacyPlaintext != nil && *k.LegacyPlaintext == rawKey {
			return k, nil
		}
	}
	return nil, apikey.ErrNotFound()
}

func (f *fakeKeyRepo) FindByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	var out []*apikey.APIKey
	for _, k := range f.byID {
		if k.OrganizationID == orgID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeyRepo) FindActiveByOrganization(ctx context.Context, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	var out []*apikey.APIKey
	for _, k := range f.byID {
		if k.OrganizationID == orgID && k.IsActive {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeyRepo) FindByUser(ctx context.Context, userID kernel.UserID, orgID kernel.OrganizationID) ([]*apikey.APIKey, error) {
	var out []*apikey.APIKey
	for _, k := range f.byID {
		if k.OrganizationID == orgID && k.UserID != nil && *k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeyRepo) Delete(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) error {
	if _, err := f.FindByID(ctx, id, orgID); err != nil {
		return err
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeKeyRepo) UpdateLastUsed(ctx context.Context, id kernel.APIKeyID) error {
	if k, ok := f.byID[id]; ok {
		_ = k
	}
	return nil
}

func (f *fakeKeyRepo) RehashLegacy(ctx context.Context, id kernel.APIKeyID, keyHash string) error {
	if k, ok := f.byID[id]; ok {
		k.KeyHash = keyHash
		k.LegacyPlaintext = nil
	}
	return nil
}

type fakeUserRepo struct {
	byID map[kernel.UserID]*user.User
}

func (f *fakeUserRepo) Save(ctx context.Context, u user.User) error { return nil }

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

const testOrg = kernel.OrganizationID("org-1")

func newTestService() (*Service, *fakeKeyRepo) {
	keyRepo := newFakeKeyRepo()
	userRepo := &fakeUserRepo{byID: map[kernel.UserID]*user.User{}}
	return NewService(keyRepo, userRepo), keyRepo
}

func TestService_Create_Live(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.Create(context.Background(), testOrg, apikey.CreateRequest{
		Name: "CI Key",
		Live: true,
	})
	require.NoError(t, err)
	assert.Equal(t, apikey.KeyPrefixLive, resp.APIKey.KeyPrefix)
	assert.True(t, apikey.ValidateFormat(resp.SecretKey))
	assert.Equal(t, apikey.AccessLevelReadWrite, resp.APIKey.AccessLevel)
}

func TestService_Create_UnknownUser(t *testing.T) {
	svc, _ := newTestService()
	uid := kernel.NewUserID("ghost")

	_, err := svc.Create(context.Background(), testOrg, apikey.CreateRequest{
		Name:   "scoped key",
		UserID: &uid,
	})
	require.Error(t, err)
}

func TestService_Update_PartialFields(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), testOrg, apikey.CreateRequest{Name: "orig"})
	require.NoError(t, err)

	id := kernel.NewAPIKeyID(created.APIKey.ID)
	updated, err := svc.Update(context.Background(), id, testOrg, apikey.UpdateRequest{
		Name:     ptr("renamed"),
		IsActive: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, updated.IsActive)
}

func TestService_Rotate_IssuesNewSecret(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), testOrg, apikey.CreateRequest{Name: "rotatable"})
	require.NoError(t, err)

	id := kernel.NewAPIKeyID(created.APIKey.ID)
	rotated, err := svc.Rotate(context.Background(), id, testOrg)
	require.NoError(t, err)
	assert.NotEqual(t, created.SecretKey, rotated.SecretKey)
	assert.True(t, rotated.APIKey.IsActive)
}

func TestService_Revoke(t *testing.T) {
	svc, repo := newTestService()

	created, err := svc.Create(context.Background(), testOrg, apikey.CreateRequest{Name: "to revoke"})
	require.NoError(t, err)

	id := kernel.NewAPIKeyID(created.APIKey.ID)
	require.NoError(t, svc.Revoke(context.Background(), id, testOrg))

	stored := repo.byID[id]
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.RevokedAt)
}

func TestService_ValidateAPIKey_RevokedIsRejected(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), testOrg, apikey.CreateRequest{Name: "will be revoked", Live: true})
	require.NoError(t, err)
	id := kernel.NewAPIKeyID(created.APIKey.ID)
	require.NoError(t, svc.Revoke(context.Background(), id, testOrg))

	key, err := svc.resolve(context.Background(), created.SecretKey)
	require.NoError(t, err)
	assert.False(t, key.IsValid())
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Get(context.Background(), kernel.NewAPIKeyID("missing"), testOrg)
	require.Error(t, err)
}
