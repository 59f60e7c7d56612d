package oauthsrv

import (
	"context"

	"github.com/google/uuid"
	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/iam/identity"
	"github.com/idfort/idfort/pkg/iam/oauth"
	"github.com/idfort/idfort/pkg/iam/token"
	"github.com/idfort/idfort/pkg/kernel"
)

// Service runs the OAuth2 authorization-code flow: Authorize mints a
// single-use code, Exchange trades it for a token. Every collaborator is
// injected; the service holds no cross-request state.
type Service struct {
	codes      oauth.CodeRepository
	clients    oauth.ClientRepository
	identities identity.Repository
	signer     token.Signer
	clock      kernel.Clock
	idgen      kernel.IDGenerator
	publisher  events.Publisher
	emitter    events.Emitter
}

func NewService(
	codes oauth.CodeRepository,
	clients oauth.ClientRepository,
	identities identity.Repository,
	signer token.Signer,
	clock kernel.Clock,
	idgen kernel.IDGenerator,
	publisher events.Publisher,
	emitter events.Emitter,
) *Service {
	return &Service{
		codes:      codes,
		clients:    clients,
		identities: identities,
		signer:     signer,
		clock:      clock,
		idgen:      idgen,
		publisher:  publisher,
		emitter:    emitter,
	}
}

// Authorize validates the client and requested scope, then mints and
// persists a single-use authorization code under the named expiry policy.
// The returned code carries the secret value; observability events carry
// metadata only.
func (s *Service) Authorize(
	ctx context.Context,
	identityID kernel.IdentityID,
	clientID kernel.ClientID,
	requestedScope string,
	policyName string,
) (*oauth.AuthorizationCode, error) {
	ident, err := s.identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		var e *errx.Error
		if errx.As(err, &e) && e.Type == errx.TypeNotFound {
			return nil, oauth.ErrClientNotFound().WithDetail("client_id", clientID.String())
		}
		return nil, err
	}

	scopes, verr := oauth.ParseScopes(requestedScope)
	if verr != nil {
		return nil, verr
	}
	if !client.AllowsScopes(scopes) {
		return nil, oauth.ErrInvalidScope().WithDetail("reason", "scope not granted to client")
	}

	policy, err := iam.ExpiryPolicies.Lookup(policyName)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	code, err := oauth.NewAuthorizationCode(
		kernel.NewCodeID(s.idgen.Generate()),
		ident.ID,
		client.ID,
		scopes,
		now,
		now.Add(policy.TTL()),
	)
	if err != nil {
		// The generator is contracted to produce >=32 chars; hitting this
		// means the process is miswired.
		return nil, errx.Wrap(err, "failed to construct authorization code", errx.TypeInternal)
	}

	if err := s.codes.Save(ctx, code); err != nil {
		return nil, err
	}

	issued := events.New(uuid.NewString(), "oauth.code_issued", ident.ID.String(), map[string]interface{}{
		"client_id":  client.ID.String(),
		"scopes":     code.Scopes,
		"expires_at": code.ExpiresAt,
	}, now)

	if err := s.publisher.Publish(ctx, []events.Event{issued}); err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, issued)

	return &code, nil
}

// Exchange trades a code for a token. The consume-and-mint step is one
// atomic unit in the persistence layer: of two concurrent exchanges of the
// same code, exactly one receives a token. Not-found, already-used, and
// expired all surface as the same code-invalid violation.
func (s *Service) Exchange(ctx context.Context, codeID kernel.CodeID) (*token.Token, string, error) {
	now := s.clock.Now()

	mint := func(code *oauth.AuthorizationCode) (token.Token, error) {
		return token.New(kernel.NewTokenID(s.idgen.Generate()), code.IdentityID, code.Scopes, now)
	}

	tok, err := s.codes.Exchange(ctx, codeID, now, mint)
	if err != nil {
		return nil, "", err
	}

	bearer, err := s.signer.Sign(*tok)
	if err != nil {
		return nil, "", err
	}

	batch := []events.Event{
		events.New(uuid.NewString(), "oauth.code_exchanged", tok.IdentityID.String(), map[string]interface{}{
			"client_scopes": tok.Scopes,
		}, now),
		events.New(uuid.NewString(), "token.issued", tok.ID.String(), map[string]interface{}{
			"identity_id": tok.IdentityID.String(),
			"scopes":      tok.Scopes,
		}, now),
	}

	if err := s.publisher.Publish(ctx, batch); err != nil {
		return nil, "", err
	}

	for _, ev := range batch {
		s.emitter.Emit(ctx, ev)
	}

	return tok, bearer, nil
}
