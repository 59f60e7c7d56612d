package mfasrv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/iam/mfa"
	"github.com/idfort/idfort/pkg/kernel"
)

// Service drives the MFA challenge state machine. Auth methods resolve
// through the iam.AuthMethods registry, so an unregistered method name
// fails closed before anything is persisted.
type Service struct {
	repo      mfa.ChallengeRepository
	clock     kernel.Clock
	idgen     kernel.IDGenerator
	publisher events.Publisher
	emitter   events.Emitter
}

func NewService(
	repo mfa.ChallengeRepository,
	clock kernel.Clock,
	idgen kernel.IDGenerator,
	publisher events.Publisher,
	emitter events.Emitter,
) *Service {
	return &Service{
		repo:      repo,
		clock:     clock,
		idgen:     idgen,
		publisher: publisher,
		emitter:   emitter,
	}
}

// Create opens a pending challenge for the identity: the factor secret is
// enrolled through the method's verifier (only derived material is stored)
// and the expiry window starts at the injected clock's now.
func (s *Service) Create(
	ctx context.Context,
	identityID kernel.IdentityID,
	method string,
	factor string,
	ttl time.Duration,
) (*mfa.Challenge, error) {
	verifier, err := iam.AuthMethods.Lookup(method)
	if err != nil {
		return nil, mfa.ErrMethodUnknown(method)
	}

	hash, err := verifier.Enroll(factor)
	if err != nil {
		return nil, errx.Wrap(err, "failed to enroll factor", errx.TypeInternal)
	}

	now := s.clock.Now()
	challenge, err := mfa.NewChallenge(
		kernel.NewChallengeID(s.idgen.Generate()),
		identityID,
		method,
		hash,
		now,
		ttl,
	)
	if err != nil {
		return nil, errx.Wrap(err, "failed to construct challenge", errx.TypeInternal)
	}

	if err := s.repo.Save(ctx, challenge); err != nil {
		return nil, err
	}

	created := events.New(uuid.NewString(), "mfa.challenge_created", challenge.ID.String(), map[string]interface{}{
		"identity_id": challenge.IdentityID.String(),
		"method":      challenge.Method,
		"expires_at":  challenge.ExpiresAt,
	}, now)

	if err := s.publisher.Publish(ctx, []events.Event{created}); err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, created)

	return &challenge, nil
}

// Verify runs one verification attempt. An expired window is persisted as
// the terminal expired state before the violation returns; a factor
// mismatch leaves the challenge pending, so the session is not consumed.
func (s *Service) Verify(ctx context.Context, id kernel.ChallengeID, submittedFactor string) (*mfa.Challenge, error) {
	challenge, err := s.repo.FindByID(ctx, id)
	if err != nil {
		var e *errx.Error
		if errx.As(err, &e) && e.Type == errx.TypeNotFound {
			return nil, mfa.ErrChallengeNotFound()
		}
		return nil, err
	}

	verifier, err := iam.AuthMethods.Lookup(challenge.Method)
	if err != nil {
		return nil, mfa.ErrMethodUnknown(challenge.Method)
	}

	now := s.clock.Now()
	before := challenge.Status
	verr := challenge.Verify(now, submittedFactor, verifier)

	if verr != nil {
		if challenge.Status != before {
			// pending -> expired happened inside Verify; persist the
			// terminal state so later attempts fail the same way.
			if err := s.repo.Save(ctx, *challenge); err != nil {
				return nil, err
			}
			expired := events.New(uuid.NewString(), "mfa.challenge_expired", challenge.ID.String(), map[string]interface{}{
				"identity_id": challenge.IdentityID.String(),
			}, now)
			if err := s.publisher.Publish(ctx, []events.Event{expired}); err != nil {
				return nil, err
			}
			s.emitter.Emit(ctx, expired)
		}

		s.emitter.Emit(ctx, events.New(uuid.NewString(), "mfa.verify_failed", challenge.ID.String(), map[string]interface{}{
			"identity_id": challenge.IdentityID.String(),
			"code":        verr.Code,
		}, now))

		return nil, verr
	}

	if err := s.repo.Save(ctx, *challenge); err != nil {
		return nil, err
	}

	verified := events.New(uuid.NewString(), "mfa.challenge_verified", challenge.ID.String(), map[string]interface{}{
		"identity_id": challenge.IdentityID.String(),
		"method":      challenge.Method,
	}, now)

	if err := s.publisher.Publish(ctx, []events.Event{verified}); err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, verified)

	return challenge, nil
}
