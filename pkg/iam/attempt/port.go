package attempt

import (
	"context"

	"github.com/idfort/idfort/pkg/kernel"
)

// Repository defines the contract for attempt persistence. The store is
// append-only: there is no update and no delete.
type Repository interface {
	Save(ctx context.Context, att AuthenticationAttempt) error
	FindByID(ctx context.Context, id kernel.AttemptID) (*AuthenticationAttempt, error)
	FindByIdentity(ctx context.Context, identityID kernel.IdentityID, opts kernel.PaginationOptions) (kernel.Paginated[*AuthenticationAttempt], error)
}
