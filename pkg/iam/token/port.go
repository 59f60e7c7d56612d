package token

import (
	"context"

	"github.com/idfort/idfort/pkg/kernel"
)

// Repository defines the contract for token persistence.
//
// RevokeAllByIdentity must be atomic per identity: a concurrent read sees
// either the fully-pre-revocation or fully-post-revocation state, never a
// partial set. The persistence layer carries that guarantee, not in-process
// locking.
type Repository interface {
	Save(ctx context.Context, tok Token) error
	GetByID(ctx context.Context, id kernel.TokenID) (*Token, error)
	RevokeAllByIdentity(ctx context.Context, identityID kernel.IdentityID) (int64, error)
}

// Signer renders a token as a bearer credential for the transport layer.
type Signer interface {
	Sign(tok Token) (string, error)
}
