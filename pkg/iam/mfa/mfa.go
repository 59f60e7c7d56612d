package mfa

import (
	"fmt"
	"net/http"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/kernel"
)

// Status is the challenge lifecycle state. The only legal transitions are
// pending -> verified and pending -> expired; both targets are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusExpired  Status = "expired"
)

// Challenge is a pending step-up authentication: a time-boxed window in
// which the identity must present a matching second factor. Expiry is
// judged solely by comparing an injected clock reading to ExpiresAt; the
// aggregate never reads the wall clock itself.
type Challenge struct {
	ID         kernel.ChallengeID `json:"id"`
	IdentityID kernel.IdentityID  `json:"identity_id"`
	Method     string             `json:"method"`
	FactorHash string             `json:"-"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	Status     Status             `json:"status"`
}

// NewChallenge constructs a pending challenge, failing fast on structural
// defects.
func NewChallenge(
	id kernel.ChallengeID,
	identityID kernel.IdentityID,
	method string,
	factorHash string,
	now time.Time,
	ttl time.Duration,
) (Challenge, error) {
	if id.IsEmpty() {
		return Challenge{}, fmt.Errorf("mfa: challenge identifier must not be empty")
	}
	if identityID.IsEmpty() {
		return Challenge{}, fmt.Errorf("mfa: identity reference must not be empty")
	}
	if method == "" {
		return Challenge{}, fmt.Errorf("mfa: method must not be empty")
	}
	if ttl <= 0 {
		return Challenge{}, fmt.Errorf("mfa: ttl must be positive, got %s", ttl)
	}

	return Challenge{
		ID:         id,
		IdentityID: identityID,
		Method:     method,
		FactorHash: factorHash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Status:     StatusPending,
	}, nil
}

// IsExpired reports whether the window is over at the given instant.
// now == expires-at already counts as expired.
func (c *Challenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsTerminal reports whether the challenge can still transition.
func (c *Challenge) IsTerminal() bool {
	return c.Status == StatusVerified || c.Status == StatusExpired
}

// Verify runs one verification attempt against the state machine:
//
//   - expired window: transition pending -> expired, fail with MFA_EXPIRED;
//     subsequent calls keep failing the same way (terminal is idempotent)
//   - factor mismatch: the challenge stays pending, the attempt does not
//     consume the session
//   - factor match: transition pending -> verified
//
// The caller supplies the clock reading and the verifier resolved for the
// challenge's method.
func (c *Challenge) Verify(now time.Time, submitted string, verifier iam.FactorVerifier) *errx.Error {
	switch c.Status {
	case StatusVerified:
		return ErrChallengeCompleted()
	case StatusExpired:
		return ErrMfaExpired()
	}

	if c.IsExpired(now) {
		c.Status = StatusExpired
		return ErrMfaExpired()
	}

	if !verifier.Verify(c.FactorHash, submitted) {
		return ErrFactorMismatch()
	}

	c.Status = StatusVerified
	return nil
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("MFA")

var (
	CodeExpired            = ErrRegistry.Register("EXPIRED", errx.TypeBusiness, http.StatusUnprocessableEntity, "MFA session has expired")
	CodeFactorMismatch     = ErrRegistry.Register("FACTOR_MISMATCH", errx.TypeAuthorization, http.StatusUnauthorized, "Submitted factor does not match")
	CodeChallengeCompleted = ErrRegistry.Register("CHALLENGE_COMPLETED", errx.TypeConflict, http.StatusConflict, "MFA challenge already completed")
	CodeChallengeNotFound  = ErrRegistry.Register("CHALLENGE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "MFA challenge not found")
	CodeMethodUnknown      = ErrRegistry.Register("METHOD_UNKNOWN", errx.TypeValidation, http.StatusBadRequest, "Auth method is not registered")
)

func ErrMfaExpired() *errx.Error {
	return ErrRegistry.New(CodeExpired)
}

func ErrFactorMismatch() *errx.Error {
	return ErrRegistry.New(CodeFactorMismatch)
}

func ErrChallengeCompleted() *errx.Error {
	return ErrRegistry.New(CodeChallengeCompleted)
}

func ErrChallengeNotFound() *errx.Error {
	return ErrRegistry.New(CodeChallengeNotFound)
}

func ErrMethodUnknown(method string) *errx.Error {
	return ErrRegistry.New(CodeMethodUnknown).WithDetail("method", method)
}
