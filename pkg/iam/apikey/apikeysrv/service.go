// Package apikeysrv implements API key issuance, rotation, and validation.
package apikeysrv

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lanonasis/auth-gateway/pkg/asyncx"
	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
)

// Service implements API key issuance, lookup, and the legacy-plaintext
// migration path: a key stored before hashing was enforced validates once
// against its raw value, then is rehashed and never looked up in plaintext
// again.
type Service struct {
	repo     apikey.Repository
	userRepo user.Repository
}

func NewService(repo apikey.Repository, userRepo user.Repository) *Service {
	return &Service{repo: repo, userRepo: userRepo}
}

func (s *Service) Create(ctx context.Context, orgID kernel.OrganizationID, req apikey.CreateRequest) (*apikey.CreateResponse, error) {
	if req.UserID != nil {
		if _, err := s.userRepo.FindByID(ctx, *req.UserID); err != nil {
			return nil, user.ErrNotFound()
		}
	}

	prefix := apikey.KeyPrefixTest
	if req.Live {
		prefix = apikey.KeyPrefixLive
	}

	generated, err := apikey.Generate(prefix)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if req.ExpiresIn != nil && *req.ExpiresIn > 0 {
		expiration := time.Now().UTC().AddDate(0, 0, *req.ExpiresIn)
		expiresAt = &expiration
	}

	accessLevel := req.AccessLevel
	if accessLevel == "" {
		accessLevel = apikey.AccessLevelReadWrite
	}

	newKey := apikey.APIKey{
		ID:             kernel.NewAPIKeyID(uuid.New().String()),
		KeyHash:        apikey.Hash(generated.Key),
		KeyPrefix:      generated.KeyPrefix,
		OrganizationID: orgID,
		UserID:         req.UserID,
		Name:           req.Name,
		Description:    req.Description,
		Scopes:         req.Scopes,
		AccessLevel:    accessLevel,
		IsActive:       true,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Save(ctx, newKey); err != nil {
		return nil, errx.Wrap(err, "failed to save API key", errx.TypeInternal)
	}

	return &apikey.CreateResponse{
		APIKey:    newKey.ToDTO(),
		SecretKey: generated.Key,
		Message:   "Save this key securely. It will not be shown again.",
	}, nil
}

func (s *Service) Get(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) (*apikey.DTO, error) {
	key, err := s.repo.FindByID(ctx, id, orgID)
	if err != nil {
		return nil, apikey.ErrNotFound()
	}
	dto := key.ToDTO()
	return &dto, nil
}

// List returns an organization's API keys one page at a time. The
// repository has no native OFFSET/LIMIT query, so pagination is applied to
// the full result set in memory, which is acceptable at the per-organization
// scale this table holds.
func (s *Service) List(ctx context.Context, orgID kernel.OrganizationID, opts kernel.PaginationOptions) (*kernel.Paginated[apikey.DTO], error) {
	keys, err := s.repo.FindByOrganization(ctx, orgID)
	if err != nil {
		return nil, errx.Wrap(err, "failed to list API keys", errx.TypeInternal)
	}
	dtos := make([]apikey.DTO, 0, len(keys))
	for _, k := range keys {
		dtos = append(dtos, k.ToDTO())
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = len(dtos)
	}

	start := (page - 1) * size
	if start > len(dtos) {
		start = len(dtos)
	}
	end := start + size
	if end > len(dtos) {
		end = len(dtos)
	}

	result := kernel.NewPaginated(dtos[start:end], page, size, len(dtos))
	return &result, nil
}

func (s *Service) Update(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID, req apikey.UpdateRequest) (*apikey.DTO, error) {
	key, err := s.repo.FindByID(ctx, id, orgID)
	if err != nil {
		return nil, apikey.ErrNotFound()
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.Description != nil {
		key.Description = *req.Description
	}
	if req.Scopes != nil {
		key.Scopes = req.Scopes
	}
	if req.AccessLevel != nil {
		key.AccessLevel = *req.AccessLevel
	}
	if req.IsActive != nil {
		key.IsActive = *req.IsActive
	}
	key.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, *key); err != nil {
		return nil, errx.Wrap(err, "failed to update API key", errx.TypeInternal)
	}
	dto := key.ToDTO()
	return &dto, nil
}

// Rotate revokes the current secret and issues a new one under the same
// record, preserving name/scopes/access level.
func (s *Service) Rotate(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) (*apikey.CreateResponse, error) {
	key, err := s.repo.FindByID(ctx, id, orgID)
	if err != nil {
		return nil, apikey.ErrNotFound()
	}

	generated, err := apikey.Generate(key.KeyPrefix)
	if err != nil {
		return nil, err
	}

	key.KeyHash = apikey.Hash(generated.Key)
	key.LegacyPlaintext = nil
	key.IsActive = true
	key.RevokedAt = nil
	key.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, *key); err != nil {
		return nil, errx.Wrap(err, "failed to rotate API key", errx.TypeInternal)
	}

	return &apikey.CreateResponse{
		APIKey:    key.ToDTO(),
		SecretKey: generated.Key,
		Message:   "Save this key securely. It will not be shown again.",
	}, nil
}

func (s *Service) Revoke(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) error {
	key, err := s.repo.FindByID(ctx, id, orgID)
	if err != nil {
		return apikey.ErrNotFound()
	}
	key.Revoke()
	return s.repo.Save(ctx, *key)
}

func (s *Service) Delete(ctx context.Context, id kernel.APIKeyID, orgID kernel.OrganizationID) error {
	if _, err := s.repo.FindByID(ctx, id, orgID); err != nil {
		return apikey.ErrNotFound()
	}
	return s.repo.Delete(ctx, id, orgID)
}

// resolve looks a raw key up by hash first, falling back to the legacy
// plaintext path; a legacy hit is rehashed in the background so the
// plaintext row is never consulted again once this returns.
func (s *Service) resolve(ctx context.Context, rawKey string) (*apikey.APIKey, error) {
	keyHash := apikey.Hash(rawKey)
	key, err := s.repo.FindByHash(ctx, keyHash)
	if err == nil {
		return key, nil
	}

	legacy, legacyErr := s.repo.FindByLegacyPlaintext(ctx, rawKey)
	if legacyErr != nil {
		return nil, apikey.ErrNotFound()
	}

	asyncx.Do(func() {
		if err := s.repo.RehashLegacy(context.Background(), legacy.ID, keyHash); err != nil {
			logx.WithError(err).WithField("key_id", legacy.ID).Warn("apikeysrv: failed to rehash legacy key")
		}
	})

	return legacy, nil
}

// ValidateAPIKey implements auth.APIKeyValidator: it resolves a raw API key
// into an AuthContext usable by downstream handlers.
func (s *Service) ValidateAPIKey(c *fiber.Ctx, rawKey string) (*kernel.AuthContext, error) {
	if !apikey.ValidateFormat(rawKey) {
		return nil, apikey.ErrInvalid()
	}

	ctx := c.Context()
	key, err := s.resolve(ctx, rawKey)
	if err != nil {
		return nil, apikey.ErrNotFound()
	}

	if !key.IsValid() {
		if key.IsExpired() {
			return nil, apikey.ErrExpired()
		}
		return nil, apikey.ErrRevoked()
	}

	asyncx.Do(func() {
		if err := s.repo.UpdateLastUsed(context.Background(), key.ID); err != nil {
			logx.WithError(err).WithField("key_id", key.ID).Warn("apikeysrv: failed to update last_used_at")
		}
	})

	authCtx := &kernel.AuthContext{
		OrganizationID: key.OrganizationID,
		Scopes:         key.Scopes,
		IsAPIKey:       true,
	}
	if key.UserID != nil {
		authCtx.UserID = key.UserID
		if u, err := s.userRepo.FindByID(ctx, *key.UserID); err == nil {
			authCtx.Email = u.Email
			authCtx.Name = u.Name
			authCtx.Role = string(u.Role)
			authCtx.Plan = u.Plan
		}
	}

	return authCtx, nil
}
