// Package uaisrv implements identity resolution: mapping any auth method's
// identifier to a stable Universal Authentication Identifier.
package uaisrv

import (
	"context"

	"github.com/google/uuid"

	"github.com/lanonasis/auth-gateway/pkg/iam/uai"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
	"github.com/lanonasis/auth-gateway/pkg/outbox"
)

// Service resolves credentials to universal identities. Resolve is called
// synchronously by authsrv.Service but its own failures never fail the
// request — callers log and proceed.
type Service struct {
	repo   uai.Repository
	events outbox.Store
}

func NewService(repo uai.Repository, events outbox.Store) *Service {
	return &Service{repo: repo, events: events}
}

// Resolve implements §4.6's lookup/create-if-missing algorithm. On any
// infrastructure error it returns (nil, err) and the caller is expected to
// log and continue without a UniversalID rather than fail the request.
func (s *Service) Resolve(ctx context.Context, method, identifier string, opts uai.ResolveOptions) (*uai.ResolvedIdentity, error) {
	identifierHash := uai.HashIdentifier(method, identifier)

	link, err := s.repo.FindLinkByHash(ctx, method, identifierHash)
	if err == nil {
		if touchErr := s.repo.TouchLink(ctx, method, identifierHash); touchErr != nil {
			logx.WithError(touchErr).Warn("uaisrv: failed to update last_seen_at on credential link")
		}
		identity, err := s.repo.FindByID(ctx, link.UniversalID)
		if err != nil {
			return nil, err
		}
		return &uai.ResolvedIdentity{
			UniversalID:  identity.ID,
			PrimaryEmail: identity.PrimaryEmail,
			UserID:       identity.UserID,
		}, nil
	}

	if !opts.CreateIfMissing {
		return nil, uai.ErrNotFound()
	}
	if opts.PrimaryEmail == "" {
		return nil, uai.ErrMissingEmail()
	}

	return s.linkOrCreate(ctx, method, identifierHash, opts.PrimaryEmail)
}

// linkOrCreate honors the email tie-break rule: the first-seen email wins
// an existing identity; later methods under the same email attach to it.
func (s *Service) linkOrCreate(ctx context.Context, method, identifierHash, email string) (*uai.ResolvedIdentity, error) {
	existing, err := s.repo.FindByEmail(ctx, email)

	link := uai.CredentialLink{
		ID:             uuid.New().String(),
		Method:         method,
		IdentifierHash: identifierHash,
	}

	if err == nil {
		link.UniversalID = existing.ID
		if linkErr := s.repo.LinkCredential(ctx, link); linkErr != nil {
			return nil, uai.ErrLinkFailed()
		}
		s.emitLinked(ctx, existing.ID, method)
		return &uai.ResolvedIdentity{
			UniversalID:  existing.ID,
			PrimaryEmail: existing.PrimaryEmail,
			UserID:       existing.UserID,
		}, nil
	}

	identity := uai.Identity{
		ID:           kernel.NewUniversalID(uuid.New().String()),
		PrimaryEmail: email,
	}
	link.UniversalID = identity.ID

	if err := s.repo.CreateWithLink(ctx, identity, link); err != nil {
		return nil, uai.ErrLinkFailed()
	}
	s.emitLinked(ctx, identity.ID, method)

	return &uai.ResolvedIdentity{
		UniversalID:  identity.ID,
		PrimaryEmail: identity.PrimaryEmail,
		UserID:       identity.UserID,
	}, nil
}

func (s *Service) emitLinked(ctx context.Context, id kernel.UniversalID, method string) {
	if s.events == nil {
		return
	}
	event, err := outbox.NewEvent(id.String(), "UaiLinked", map[string]string{"method": method})
	if err != nil {
		logx.WithError(err).Warn("uaisrv: failed to build UaiLinked event")
		return
	}
	if err := s.events.Append(ctx, event, nil); err != nil {
		logx.WithError(err).Warn("uaisrv: failed to append UaiLinked event")
	}
}
