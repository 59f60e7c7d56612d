package tokensrv

import (
	"context"

	"github.com/google/uuid"
	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/iam/token"
	"github.com/idfort/idfort/pkg/kernel"
)

// Service owns the token lifecycle: issue, validate, revoke. All state
// lives behind the injected repository; the service itself is stateless
// and safe for concurrent request-scoped use.
type Service struct {
	repo      token.Repository
	signer    token.Signer
	clock     kernel.Clock
	idgen     kernel.IDGenerator
	publisher events.Publisher
	emitter   events.Emitter
}

func NewService(
	repo token.Repository,
	signer token.Signer,
	clock kernel.Clock,
	idgen kernel.IDGenerator,
	publisher events.Publisher,
	emitter events.Emitter,
) *Service {
	return &Service{
		repo:      repo,
		signer:    signer,
		clock:     clock,
		idgen:     idgen,
		publisher: publisher,
		emitter:   emitter,
	}
}

// Issue mints and persists a token for the identity and scope set, and
// returns the token with its signed bearer rendering.
func (s *Service) Issue(ctx context.Context, identityID kernel.IdentityID, scopes []string) (*token.Token, string, error) {
	tok, err := token.New(kernel.NewTokenID(s.idgen.Generate()), identityID, scopes, s.clock.Now())
	if err != nil {
		return nil, "", errx.Wrap(err, "failed to construct token", errx.TypeInternal)
	}

	if err := s.repo.Save(ctx, tok); err != nil {
		return nil, "", err
	}

	bearer, err := s.signer.Sign(tok)
	if err != nil {
		return nil, "", err
	}

	issued := events.New(uuid.NewString(), "token.issued", tok.ID.String(), map[string]interface{}{
		"identity_id": tok.IdentityID.String(),
		"scopes":      tok.Scopes,
	}, s.clock.Now())

	if err := s.publisher.Publish(ctx, []events.Event{issued}); err != nil {
		return nil, "", err
	}

	s.emitter.Emit(ctx, issued)

	return &tok, bearer, nil
}

// GetByID loads a token by identifier.
func (s *Service) GetByID(ctx context.Context, id kernel.TokenID) (*token.Token, error) {
	return s.repo.GetByID(ctx, id)
}

// Validate checks existence and revocation. A revoked token yields the
// same violation as a missing one, so callers cannot probe the store.
func (s *Service) Validate(ctx context.Context, id kernel.TokenID) (*kernel.AccessContext, error) {
	tok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		var e *errx.Error
		if errx.As(err, &e) && e.Type == errx.TypeNotFound {
			return nil, token.ErrTokenNotAuthorized()
		}
		return nil, err
	}

	if !tok.IsActive() {
		return nil, token.ErrTokenNotAuthorized()
	}

	return &kernel.AccessContext{
		IdentityID: tok.IdentityID,
		TokenID:    tok.ID,
		Scopes:     tok.Scopes,
	}, nil
}

// RevokeAllByIdentity flags every token of one identity in a single
// persistence-layer transaction. Tokens of other identities are untouched.
func (s *Service) RevokeAllByIdentity(ctx context.Context, identityID kernel.IdentityID) (int64, error) {
	revoked, err := s.repo.RevokeAllByIdentity(ctx, identityID)
	if err != nil {
		return 0, err
	}

	ev := events.New(uuid.NewString(), "token.revoked_all", identityID.String(), map[string]interface{}{
		"identity_id":   identityID.String(),
		"revoked_count": revoked,
	}, s.clock.Now())

	if err := s.publisher.Publish(ctx, []events.Event{ev}); err != nil {
		return revoked, err
	}

	s.emitter.Emit(ctx, ev)

	return revoked, nil
}
