package identity

import (
	"context"

	"github.com/idfort/idfort/pkg/kernel"
)

// Repository defines the contract for identity persistence.
type Repository interface {
	Get(ctx context.Context, id kernel.IdentityID) (*Identity, error)
	Save(ctx context.Context, ident Identity) error
}
