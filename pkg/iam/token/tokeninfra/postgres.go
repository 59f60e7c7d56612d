package tokeninfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/iam/token"
	"github.com/idfort/idfort/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresTokenRepository is the PostgreSQL implementation of
// token.Repository.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

func NewPostgresTokenRepository(db *sqlx.DB) token.Repository {
	return &PostgresTokenRepository{db: db}
}

func (r *PostgresTokenRepository) Save(ctx context.Context, tok token.Token) error {
	query := `
		INSERT INTO tokens (id, identity_id, scopes, issued_at, revoked)
		VALUES (:id, :identity_id, :scopes, :issued_at, :revoked)`

	if _, err := r.db.NamedExecContext(ctx, query, toPersistence(tok)); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errx.Conflict("token identifier already exists").
				WithDetail("token_id", tok.ID.String())
		}
		return errx.Wrap(err, "failed to save token", errx.TypeInternal).
			WithDetail("token_id", tok.ID.String())
	}
	return nil
}

func (r *PostgresTokenRepository) GetByID(ctx context.Context, id kernel.TokenID) (*token.Token, error) {
	var row tokenPersistence
	query := `SELECT id, identity_id, scopes, issued_at, revoked FROM tokens WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errx.NotFound("token not found").WithDetail("token_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to load token", errx.TypeInternal)
	}
	tok := toDomain(row)
	return &tok, nil
}

// RevokeAllByIdentity is one UPDATE statement, so every token of the
// identity flips in the same transaction. Readers see all or nothing.
func (r *PostgresTokenRepository) RevokeAllByIdentity(ctx context.Context, identityID kernel.IdentityID) (int64, error) {
	query := `UPDATE tokens SET revoked = true WHERE identity_id = $1 AND revoked = false`
	result, err := r.db.ExecContext(ctx, query, identityID.String())
	if err != nil {
		return 0, errx.Wrap(err, "failed to revoke tokens", errx.TypeInternal).
			WithDetail("identity_id", identityID.String())
	}

	revoked, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected on revocation", errx.TypeInternal)
	}
	return revoked, nil
}

type tokenPersistence struct {
	ID         string         `db:"id"`
	IdentityID string         `db:"identity_id"`
	Scopes     pq.StringArray `db:"scopes"`
	IssuedAt   time.Time      `db:"issued_at"`
	Revoked    bool           `db:"revoked"`
}

func toPersistence(tok token.Token) tokenPersistence {
	return tokenPersistence{
		ID:         tok.ID.String(),
		IdentityID: tok.IdentityID.String(),
		Scopes:     tok.Scopes,
		IssuedAt:   tok.IssuedAt,
		Revoked:    tok.Revoked,
	}
}

func toDomain(p tokenPersistence) token.Token {
	return token.Token{
		ID:         kernel.NewTokenID(p.ID),
		IdentityID: kernel.NewIdentityID(p.IdentityID),
		Scopes:     p.Scopes,
		IssuedAt:   p.IssuedAt,
		Revoked:    p.Revoked,
	}
}
