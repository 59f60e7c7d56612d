package identityinfra

import (
	"context"
	"database/sql"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/iam/identity"
	"github.com/idfort/idfort/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresIdentityRepository is the PostgreSQL implementation of
// identity.Repository.
type PostgresIdentityRepository struct {
	db *sqlx.DB
}

func NewPostgresIdentityRepository(db *sqlx.DB) identity.Repository {
	return &PostgresIdentityRepository{db: db}
}

func (r *PostgresIdentityRepository) Get(ctx context.Context, id kernel.IdentityID) (*identity.Identity, error) {
	var ident identity.Identity
	query := `SELECT id, created_at FROM identities WHERE id = $1`
	err := r.db.GetContext(ctx, &ident, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, identity.ErrIdentityNotFound().WithDetail("identity_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to load identity", errx.TypeInternal)
	}
	return &ident, nil
}

func (r *PostgresIdentityRepository) Save(ctx context.Context, ident identity.Identity) error {
	query := `
		INSERT INTO identities (id, created_at)
		VALUES (:id, :created_at)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, ident); err != nil {
		return errx.Wrap(err, "failed to save identity", errx.TypeInternal).
			WithDetail("identity_id", ident.ID.String())
	}
	return nil
}
