package token

import (
	"fmt"
	"net/http"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/kernel"
)

// Token is a credential granting API access, bound to one identity and a
// scope set. Revocation is a soft flag: a revoked token stays in the store
// for audit history but is indistinguishable from a missing one to callers.
type Token struct {
	ID         kernel.TokenID    `json:"id"`
	IdentityID kernel.IdentityID `json:"identity_id"`
	Scopes     []string          `json:"scopes"`
	IssuedAt   time.Time         `json:"issued_at"`
	Revoked    bool              `json:"revoked"`
}

// New constructs a token, failing fast on structural defects.
func New(id kernel.TokenID, identityID kernel.IdentityID, scopes []string, issuedAt time.Time) (Token, error) {
	if id.IsEmpty() {
		return Token{}, fmt.Errorf("token: identifier must not be empty")
	}
	if identityID.IsEmpty() {
		return Token{}, fmt.Errorf("token: identity reference must not be empty")
	}

	copied := make([]string, len(scopes))
	copy(copied, scopes)

	return Token{
		ID:         id,
		IdentityID: identityID,
		Scopes:     copied,
		IssuedAt:   issuedAt,
	}, nil
}

// Revoke flags the token. There is no way back: revoked is terminal.
func (t *Token) Revoke() {
	t.Revoked = true
}

// IsActive reports whether the token can still authorize requests.
func (t *Token) IsActive() bool {
	return !t.Revoked
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("TOKEN")

var (
	// CodeNotAuthorized deliberately collapses "no such token" and
	// "revoked token" into one externally observable outcome.
	CodeNotAuthorized = ErrRegistry.Register("NOT_AUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Token is not authorized")

	CodeSigningFailed = ErrRegistry.Register("SIGNING_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to sign bearer credential")
)

func ErrTokenNotAuthorized() *errx.Error {
	return ErrRegistry.New(CodeNotAuthorized)
}

func ErrSigningFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeSigningFailed, cause)
}
