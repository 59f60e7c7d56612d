package oauth

import (
	"context"
	"time"

	"github.com/idfort/idfort/pkg/iam/token"
	"github.com/idfort/idfort/pkg/kernel"
)

// ClientRepository defines the contract for client lookup.
type ClientRepository interface {
	Get(ctx context.Context, id kernel.ClientID) (*Client, error)
	Save(ctx context.Context, client Client) error
}

// MintFunc builds the token issued for a successfully consumed code. It
// runs inside the repository's atomic exchange unit and must be free of
// side effects beyond constructing the token value.
type MintFunc func(code *AuthorizationCode) (token.Token, error)

// CodeRepository defines the contract for authorization-code persistence.
//
// Exchange is the critical section of the whole flow: read the code, check
// unused and unexpired against now, mark it used, and persist the minted
// token as one atomic unit. Under two concurrent exchanges of the same
// code exactly one returns the token; the other sees the code-invalid
// violation. An abandoned call must not leave the code used without its
// token persisted.
type CodeRepository interface {
	Save(ctx context.Context, code AuthorizationCode) error
	FindByID(ctx context.Context, id kernel.CodeID) (*AuthorizationCode, error)
	Exchange(ctx context.Context, id kernel.CodeID, now time.Time, mint MintFunc) (*token.Token, error)
}
