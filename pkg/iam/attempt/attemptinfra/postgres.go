package attemptinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/iam/attempt"
	"github.com/idfort/idfort/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresAttemptRepository is the PostgreSQL implementation of
// attempt.Repository. Rows are insert-only; there is no update path.
type PostgresAttemptRepository struct {
	db *sqlx.DB
}

func NewPostgresAttemptRepository(db *sqlx.DB) attempt.Repository {
	return &PostgresAttemptRepository{db: db}
}

func (r *PostgresAttemptRepository) Save(ctx context.Context, att attempt.AuthenticationAttempt) error {
	row, err := toPersistence(att)
	if err != nil {
		return errx.Wrap(err, "failed to encode attempt context", errx.TypeInternal)
	}

	query := `
		INSERT INTO authentication_attempts (id, identity_id, outcome, method, at, context)
		VALUES (:id, :identity_id, :outcome, :method, :at, :context)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errx.Wrap(err, "failed to save attempt", errx.TypeInternal).
			WithDetail("attempt_id", att.ID.String())
	}
	return nil
}

func (r *PostgresAttemptRepository) FindByID(ctx context.Context, id kernel.AttemptID) (*attempt.AuthenticationAttempt, error) {
	var row attemptPersistence
	query := `SELECT id, identity_id, outcome, method, at, context FROM authentication_attempts WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errx.NotFound("attempt not found").WithDetail("attempt_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to load attempt", errx.TypeInternal)
	}

	att, err := row.toDomain()
	if err != nil {
		return nil, errx.Wrap(err, "failed to decode attempt context", errx.TypeInternal)
	}
	return &att, nil
}

func (r *PostgresAttemptRepository) FindByIdentity(ctx context.Context, identityID kernel.IdentityID, opts kernel.PaginationOptions) (kernel.Paginated[*attempt.AuthenticationAttempt], error) {
	var empty kernel.Paginated[*attempt.AuthenticationAttempt]

	var total int
	countQuery := `SELECT COUNT(*) FROM authentication_attempts WHERE identity_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, identityID.String()); err != nil {
		return empty, errx.Wrap(err, "failed to count attempts", errx.TypeInternal)
	}

	var rows []attemptPersistence
	query := `
		SELECT id, identity_id, outcome, method, at, context
		FROM authentication_attempts
		WHERE identity_id = $1
		ORDER BY at DESC
		LIMIT $2 OFFSET $3`

	offset := (opts.Page - 1) * opts.PageSize
	if err := r.db.SelectContext(ctx, &rows, query, identityID.String(), opts.PageSize, offset); err != nil {
		return empty, errx.Wrap(err, "failed to list attempts", errx.TypeInternal)
	}

	items := make([]*attempt.AuthenticationAttempt, 0, len(rows))
	for _, row := range rows {
		att, err := row.toDomain()
		if err != nil {
			return empty, errx.Wrap(err, "failed to decode attempt context", errx.TypeInternal)
		}
		items = append(items, &att)
	}

	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

type attemptPersistence struct {
	ID         string          `db:"id"`
	IdentityID string          `db:"identity_id"`
	Outcome    string          `db:"outcome"`
	Method     string          `db:"method"`
	At         time.Time       `db:"at"`
	Context    json.RawMessage `db:"context"`
}

func toPersistence(att attempt.AuthenticationAttempt) (attemptPersistence, error) {
	ctxJSON, err := json.Marshal(att.Context)
	if err != nil {
		return attemptPersistence{}, err
	}
	return attemptPersistence{
		ID:         att.ID.String(),
		IdentityID: att.IdentityID.String(),
		Outcome:    string(att.Outcome),
		Method:     att.Method,
		At:         att.At,
		Context:    ctxJSON,
	}, nil
}

func (p attemptPersistence) toDomain() (attempt.AuthenticationAttempt, error) {
	var correlation map[string]interface{}
	if len(p.Context) > 0 {
		if err := json.Unmarshal(p.Context, &correlation); err != nil {
			return attempt.AuthenticationAttempt{}, err
		}
	}
	return attempt.AuthenticationAttempt{
		ID:         kernel.NewAttemptID(p.ID),
		IdentityID: kernel.NewIdentityID(p.IdentityID),
		Outcome:    attempt.Outcome(p.Outcome),
		Method:     p.Method,
		At:         p.At,
		Context:    correlation,
	}, nil
}
