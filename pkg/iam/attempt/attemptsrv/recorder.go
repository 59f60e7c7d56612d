package attemptsrv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/iam/attempt"
	"github.com/idfort/idfort/pkg/kernel"
)

// Recorder appends authentication attempts and scores them against the
// registered risk signals. The score is advisory: concrete risk policy
// lives with whoever registered the signals.
type Recorder struct {
	repo    attempt.Repository
	clock   kernel.Clock
	emitter events.Emitter
}

func NewRecorder(repo attempt.Repository, clock kernel.Clock, emitter events.Emitter) *Recorder {
	return &Recorder{
		repo:    repo,
		clock:   clock,
		emitter: emitter,
	}
}

// Record appends one attempt and emits it to the observability sink along
// with its aggregated risk score.
func (r *Recorder) Record(
	ctx context.Context,
	identityID kernel.IdentityID,
	outcome attempt.Outcome,
	method string,
	correlation map[string]interface{},
) (*attempt.AuthenticationAttempt, error) {
	now := r.clock.Now()

	att, err := attempt.New(
		kernel.NewAttemptID(uuid.NewString()),
		identityID,
		outcome,
		method,
		now,
		correlation,
	)
	if err != nil {
		return nil, errx.Wrap(err, "failed to construct attempt record", errx.TypeInternal)
	}

	if err := r.repo.Save(ctx, att); err != nil {
		return nil, err
	}

	r.emitter.Emit(ctx, events.New(uuid.NewString(), "attempt.recorded", att.ID.String(), map[string]interface{}{
		"identity_id": att.IdentityID.String(),
		"outcome":     string(att.Outcome),
		"method":      att.Method,
		"risk_score":  r.Score(att),
	}, now))

	return &att, nil
}

// Score sums every registered risk signal over the attempt.
func (r *Recorder) Score(att attempt.AuthenticationAttempt) float64 {
	var total float64
	for _, name := range iam.RiskSignals.Names() {
		signal, err := iam.RiskSignals.Lookup(name)
		if err != nil {
			continue
		}
		total += signal.Evaluate(string(att.Outcome), att.Context)
	}
	return total
}

// FindByID loads one attempt record.
func (r *Recorder) FindByID(ctx context.Context, id kernel.AttemptID) (*attempt.AuthenticationAttempt, error) {
	return r.repo.FindByID(ctx, id)
}

// History pages through an identity's attempts, newest first.
func (r *Recorder) History(ctx context.Context, identityID kernel.IdentityID, opts kernel.PaginationOptions) (kernel.Paginated[*attempt.AuthenticationAttempt], error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	return r.repo.FindByIdentity(ctx, identityID, opts)
}

// Since is a convenience for risk collaborators: how long ago the attempt
// happened relative to the injected clock.
func (r *Recorder) Since(att attempt.AuthenticationAttempt) time.Duration {
	return r.clock.Now().Sub(att.At)
}
