package mfainfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/iam/mfa"
	"github.com/idfort/idfort/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresChallengeRepository is the PostgreSQL implementation of
// mfa.ChallengeRepository.
type PostgresChallengeRepository struct {
	db *sqlx.DB
}

func NewPostgresChallengeRepository(db *sqlx.DB) mfa.ChallengeRepository {
	return &PostgresChallengeRepository{db: db}
}

// Save upserts; only the status may change after creation, and never away
// from a terminal state.
func (r *PostgresChallengeRepository) Save(ctx context.Context, challenge mfa.Challenge) error {
	query := `
		INSERT INTO mfa_challenges (id, identity_id, method, factor_hash, created_at, expires_at, status)
		VALUES (:id, :identity_id, :method, :factor_hash, :created_at, :expires_at, :status)
		ON CONFLICT (id) DO UPDATE SET status = :status
		WHERE mfa_challenges.status = 'pending'`

	if _, err := r.db.NamedExecContext(ctx, query, toPersistence(challenge)); err != nil {
		return errx.Wrap(err, "failed to save MFA challenge", errx.TypeInternal).
			WithDetail("challenge_id", challenge.ID.String())
	}
	return nil
}

func (r *PostgresChallengeRepository) FindByID(ctx context.Context, id kernel.ChallengeID) (*mfa.Challenge, error) {
	var row challengePersistence
	query := `SELECT id, identity_id, method, factor_hash, created_at, expires_at, status FROM mfa_challenges WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errx.NotFound("MFA challenge not found")
		}
		return nil, errx.Wrap(err, "failed to load MFA challenge", errx.TypeInternal)
	}
	challenge := row.toDomain()
	return &challenge, nil
}

type challengePersistence struct {
	ID         string    `db:"id"`
	IdentityID string    `db:"identity_id"`
	Method     string    `db:"method"`
	FactorHash string    `db:"factor_hash"`
	CreatedAt  time.Time `db:"created_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	Status     string    `db:"status"`
}

func toPersistence(c mfa.Challenge) challengePersistence {
	return challengePersistence{
		ID:         c.ID.String(),
		IdentityID: c.IdentityID.String(),
		Method:     c.Method,
		FactorHash: c.FactorHash,
		CreatedAt:  c.CreatedAt,
		ExpiresAt:  c.ExpiresAt,
		Status:     string(c.Status),
	}
}

func (p challengePersistence) toDomain() mfa.Challenge {
	return mfa.Challenge{
		ID:         kernel.NewChallengeID(p.ID),
		IdentityID: kernel.NewIdentityID(p.IdentityID),
		Method:     p.Method,
		FactorHash: p.FactorHash,
		CreatedAt:  p.CreatedAt,
		ExpiresAt:  p.ExpiresAt,
		Status:     mfa.Status(p.Status),
	}
}
