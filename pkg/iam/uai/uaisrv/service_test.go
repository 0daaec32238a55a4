package uaisrv

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanonasis/auth-gateway/pkg/iam/uai"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/outbox"
)

type fakeUaiRepo struct {
	identities map[kernel.UniversalID]*uai.Identity
	byEmail    map[string]kernel.UniversalID
	links      map[string]uai.CredentialLink // keyed by method+hash
}

func newFakeUaiRepo() *fakeUaiRepo {
	return &fakeUaiRepo{
		identities: map[kernel.UniversalID]*uai.Identity{},
		byEmail:    map[string]kernel.UniversalID{},
		links:      map[string]uai.CredentialLink{},
	}
}

func linkKey(method, hash string) string { return method + "|" + hash }

func (f *fakeUaiRepo) FindLinkByHash(ctx context.Context, method, identifierHash string) (*uai.CredentialLink, error) {
	l, ok := f.links[linkKey(method, identifierHash)]
	if !ok {
		return nil, uai.ErrNotFound()
	}
	return &l, nil
}

func (f *fakeUaiRepo) FindByEmail(ctx context.Context, email string) (*uai.Identity, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return nil, uai.ErrNotFound()
	}
	return f.identities[id], nil
}

func (f *fakeUaiRepo) FindByID(ctx context.Context, id kernel.UniversalID) (*uai.Identity, error) {
	identity, ok := f.identities[id]
	if !ok {
		return nil, uai.ErrNotFound()
	}
	return identity, nil
}

func (f *fakeUaiRepo) CreateWithLink(ctx context.Context, identity uai.Identity, link uai.CredentialLink) error {
	f.identities[identity.ID] = &identity
	f.byEmail[identity.PrimaryEmail] = identity.ID
	f.links[linkKey(link.Method, link.IdentifierHash)] = link
	return nil
}

func (f *fakeUaiRepo) LinkCredential(ctx context.Context, link uai.CredentialLink) error {
	f.links[linkKey(link.Method, link.IdentifierHash)] = link
	return nil
}

func (f *fakeUaiRepo) TouchLink(ctx context.Context, method, identifierHash string) error {
	return nil
}

type fakeOutboxStore struct {
	appended []outbox.Event
}

func (f *fakeOutboxStore) Append(ctx context.Context, ev outbox.Event, destinations []string) error {
	f.appended = append(f.appended, ev)
	return nil
}
func (f *fakeOutboxStore) ClaimBatch(ctx context.Context, limit int) ([]outbox.ClaimedEntry, error) {
	return nil, nil
}
func (f *fakeOutboxStore) MarkDelivered(ctx context.Context, entryID uuid.UUID) error { return nil }
func (f *fakeOutboxStore) MarkFailed(ctx context.Context, entryID uuid.UUID, errMsg string, nextAttempt time.Time) error {
	return nil
}
func (f *fakeOutboxStore) MarkDead(ctx context.Context, entryID uuid.UUID, errMsg string) error {
	return nil
}

func TestService_Resolve_CreatesNewIdentity(t *testing.T) {
	repo := newFakeUaiRepo()
	events := &fakeOutboxStore{}
	svc := NewService(repo, events)

	resolved, err := svc.Resolve(context.Background(), "jwt", "token-abc", uai.ResolveOptions{
		CreateIfMissing: true,
		PrimaryEmail:    "user@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", resolved.PrimaryEmail)
	assert.Len(t, events.appended, 1)
}

func TestService_Resolve_SecondMethodLinksToSameIdentity(t *testing.T) {
	repo := newFakeUaiRepo()
	svc := NewService(repo, &fakeOutboxStore{})

	first, err := svc.Resolve(context.Background(), "jwt", "token-abc", uai.ResolveOptions{
		CreateIfMissing: true,
		PrimaryEmail:    "user@example.com",
	})
	require.NoError(t, err)

	second, err := svc.Resolve(context.Background(), "apikey", "key-xyz", uai.ResolveOptions{
		CreateIfMissing: true,
		PrimaryEmail:    "user@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, first.UniversalID, second.UniversalID)
}

func TestService_Resolve_NotFoundWithoutCreate(t *testing.T) {
	repo := newFakeUaiRepo()
	svc := NewService(repo, &fakeOutboxStore{})

	_, err := svc.Resolve(context.Background(), "jwt", "unknown", uai.ResolveOptions{CreateIfMissing: false})
	require.Error(t, err)
}

func TestService_Resolve_MissingEmailWhenCreating(t *testing.T) {
	repo := newFakeUaiRepo()
	svc := NewService(repo, &fakeOutboxStore{})

	_, err := svc.Resolve(context.Background(), "jwt", "unknown", uai.ResolveOptions{CreateIfMissing: true})
	require.Error(t, err)
}

func TestService_Resolve_CachedLinkSkipsCreate(t *testing.T) {
	repo := newFakeUaiRepo()
	svc := NewService(repo, &fakeOutboxStore{})

	first, err := svc.Resolve(context.Background(), "jwt", "token-abc", uai.ResolveOptions{
		CreateIfMissing: true,
		PrimaryEmail:    "user@example.com",
	})
	require.NoError(t, err)

	second, err := svc.Resolve(context.Background(), "jwt", "token-abc", uai.ResolveOptions{CreateIfMissing: false})
	require.NoError(t, err)
	assert.Equal(t, first.UniversalID, second.UniversalID)
}

func TestHashIdentifier_DifferentMethodsDifferentHash(t *testing.T) {
	h1 := uai.HashIdentifier("jwt", "same-value")
	h2 := uai.HashIdentifier("apikey", "same-value")
	assert.NotEqual(t, h1, h2)
}
