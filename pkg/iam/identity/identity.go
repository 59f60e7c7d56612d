package identity

import (
	"fmt"
	"net/http"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/kernel"
)

// Identity is the minimal aggregate other aggregates attach to: an opaque,
// immutable identifier and nothing else. Profile data, roles, and policy
// live outside the core.
type Identity struct {
	ID        kernel.IdentityID `db:"id" json:"id"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// New constructs an identity, failing fast on a structurally invalid
// identifier. A failure here is a caller defect, not a business outcome.
func New(id kernel.IdentityID, now time.Time) (Identity, error) {
	ident := Identity{ID: id, CreatedAt: now}
	if err := ident.Validate(); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// Validate enforces only structural invariants of the identifier.
func (i Identity) Validate() error {
	if i.ID.IsEmpty() {
		return fmt.Errorf("identity: identifier must not be empty")
	}
	return nil
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("IDENTITY")

var (
	CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Identity not found")
)

func ErrIdentityNotFound() *errx.Error {
	return ErrRegistry.New(CodeNotFound)
}
