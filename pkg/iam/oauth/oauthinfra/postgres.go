package oauthinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/iam/oauth"
	"github.com/idfort/idfort/pkg/iam/token"
	"github.com/idfort/idfort/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresClientRepository is the PostgreSQL implementation of
// oauth.ClientRepository.
type PostgresClientRepository struct {
	db *sqlx.DB
}

func NewPostgresClientRepository(db *sqlx.DB) oauth.ClientRepository {
	return &PostgresClientRepository{db: db}
}

func (r *PostgresClientRepository) Get(ctx context.Context, id kernel.ClientID) (*oauth.Client, error) {
	var row clientPersistence
	query := `SELECT id, name, allowed_scopes, created_at FROM oauth_clients WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errx.NotFound("client not found").WithDetail("client_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to load client", errx.TypeInternal)
	}
	client := row.toDomain()
	return &client, nil
}

func (r *PostgresClientRepository) Save(ctx context.Context, client oauth.Client) error {
	query := `
		INSERT INTO oauth_clients (id, name, allowed_scopes, created_at)
		VALUES (:id, :name, :allowed_scopes, :created_at)
		ON CONFLICT (id) DO UPDATE SET name = :name, allowed_scopes = :allowed_scopes`

	row := clientPersistence{
		ID:            client.ID.String(),
		Name:          client.Name,
		AllowedScopes: client.AllowedScopes,
		CreatedAt:     client.CreatedAt,
	}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errx.Wrap(err, "failed to save client", errx.TypeInternal).
			WithDetail("client_id", client.ID.String())
	}
	return nil
}

// PostgresCodeRepository is the PostgreSQL implementation of
// oauth.CodeRepository.
type PostgresCodeRepository struct {
	db *sqlx.DB
}

func NewPostgresCodeRepository(db *sqlx.DB) oauth.CodeRepository {
	return &PostgresCodeRepository{db: db}
}

func (r *PostgresCodeRepository) Save(ctx context.Context, code oauth.AuthorizationCode) error {
	query := `
		INSERT INTO authorization_codes (id, identity_id, client_id, scopes, issued_at, expires_at, used)
		VALUES (:id, :identity_id, :client_id, :scopes, :issued_at, :expires_at, :used)`

	if _, err := r.db.NamedExecContext(ctx, query, codeToPersistence(code)); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errx.Conflict("authorization code already exists")
		}
		return errx.Wrap(err, "failed to save authorization code", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresCodeRepository) FindByID(ctx context.Context, id kernel.CodeID) (*oauth.AuthorizationCode, error) {
	var row codePersistence
	query := `SELECT id, identity_id, client_id, scopes, issued_at, expires_at, used FROM authorization_codes WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errx.NotFound("authorization code not found")
		}
		return nil, errx.Wrap(err, "failed to load authorization code", errx.TypeInternal)
	}
	code := row.toDomain()
	return &code, nil
}

// Exchange runs the consume-and-mint critical section in one transaction.
// The conditional UPDATE is the gate: only an unused, unexpired row flips,
// so of two concurrent exchanges one gets the row back and the other gets
// zero rows and the collapsed code-invalid violation. The token insert
// rides the same transaction, so an abandoned request rolls back both.
func (r *PostgresCodeRepository) Exchange(ctx context.Context, id kernel.CodeID, now time.Time, mint oauth.MintFunc) (*token.Token, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to begin exchange transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	var row codePersistence
	consume := `
		UPDATE authorization_codes
		SET used = true
		WHERE id = $1 AND used = false AND expires_at > $2
		RETURNING id, identity_id, client_id, scopes, issued_at, expires_at, used`

	if err := tx.GetContext(ctx, &row, consume, id.String(), now); err != nil {
		if err == sql.ErrNoRows {
			return nil, oauth.ErrCodeInvalid()
		}
		return nil, errx.Wrap(err, "failed to consume authorization code", errx.TypeInternal)
	}

	code := row.toDomain()
	tok, err := mint(&code)
	if err != nil {
		return nil, errx.Wrap(err, "failed to mint token for exchange", errx.TypeInternal)
	}

	insert := `
		INSERT INTO tokens (id, identity_id, scopes, issued_at, revoked)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insert, tok.ID.String(), tok.IdentityID.String(), pq.StringArray(tok.Scopes), tok.IssuedAt, tok.Revoked); err != nil {
		return nil, errx.Wrap(err, "failed to persist exchanged token", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, errx.Wrap(err, "failed to commit exchange", errx.TypeInternal)
	}

	return &tok, nil
}

type clientPersistence struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	AllowedScopes pq.StringArray `db:"allowed_scopes"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (p clientPersistence) toDomain() oauth.Client {
	return oauth.Client{
		ID:            kernel.NewClientID(p.ID),
		Name:          p.Name,
		AllowedScopes: p.AllowedScopes,
		CreatedAt:     p.CreatedAt,
	}
}

type codePersistence struct {
	ID         string         `db:"id"`
	IdentityID string         `db:"identity_id"`
	ClientID   string         `db:"client_id"`
	Scopes     pq.StringArray `db:"scopes"`
	IssuedAt   time.Time      `db:"issued_at"`
	ExpiresAt  time.Time      `db:"expires_at"`
	Used       bool           `db:"used"`
}

func codeToPersistence(code oauth.AuthorizationCode) codePersistence {
	return codePersistence{
		ID:         code.ID.String(),
		IdentityID: code.IdentityID.String(),
		ClientID:   code.ClientID.String(),
		Scopes:     code.Scopes,
		IssuedAt:   code.IssuedAt,
		ExpiresAt:  code.ExpiresAt,
		Used:       code.Used,
	}
}

func (p codePersistence) toDomain() oauth.AuthorizationCode {
	return oauth.AuthorizationCode{
		ID:         kernel.NewCodeID(p.ID),
		IdentityID: kernel.NewIdentityID(p.IdentityID),
		ClientID:   kernel.NewClientID(p.ClientID),
		Scopes:     p.Scopes,
		IssuedAt:   p.IssuedAt,
		ExpiresAt:  p.ExpiresAt,
		Used:       p.Used,
	}
}
