package mfa

import (
	"context"

	"github.com/idfort/idfort/pkg/kernel"
)

// ChallengeRepository defines the contract for challenge persistence.
// Save upserts, so state transitions persist through the same call that
// created the challenge.
type ChallengeRepository interface {
	Save(ctx context.Context, challenge Challenge) error
	FindByID(ctx context.Context, id kernel.ChallengeID) (*Challenge, error)
}
