package attemptsrv_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/iam/attempt"
	"github.com/idfort/idfort/pkg/iam/attempt/attemptsrv"
	"github.com/idfort/idfort/pkg/kernel"
)

// failureSignal scores failed attempts only.
type failureSignal struct{}

func (failureSignal) Evaluate(outcome string, _ map[string]interface{}) float64 {
	if outcome == "failed" {
		return 1.0
	}
	return 0.0
}

func init() {
	iam.RiskSignals.MustRegister("test-failure", failureSignal{})
}

// --- Fakes ---

type fakeAttemptRepo struct {
	mu    sync.Mutex
	saved []attempt.AuthenticationAttempt
}

func (r *fakeAttemptRepo) Save(_ context.Context, att attempt.AuthenticationAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, att)
	return nil
}

func (r *fakeAttemptRepo) FindByID(_ context.Context, id kernel.AttemptID) (*attempt.AuthenticationAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, att := range r.saved {
		if att.ID == id {
			return &att, nil
		}
	}
	return nil, errx.NotFound("attempt not found")
}

func (r *fakeAttemptRepo) FindByIdentity(_ context.Context, identityID kernel.IdentityID, opts kernel.PaginationOptions) (kernel.Paginated[*attempt.AuthenticationAttempt], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*attempt.AuthenticationAttempt
	for i := range r.saved {
		if r.saved[i].IdentityID == identityID {
			items = append(items, &r.saved[i])
		}
	}
	total := len(items)
	start := (opts.Page - 1) * opts.PageSize
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}
	return kernel.NewPaginated(items[start:end], opts.Page, opts.PageSize, total), nil
}

// --- Tests ---

func TestRecord(t *testing.T) {
	repo := &fakeAttemptRepo{}
	clock := kernel.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	emitter := events.NewMemoryEmitter()
	recorder := attemptsrv.NewRecorder(repo, clock, emitter)

	att, err := recorder.Record(context.Background(), kernel.NewIdentityID("identity-1"), attempt.OutcomeFailed, "password", map[string]interface{}{"ip": "10.0.0.1"})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if !att.At.Equal(clock.Now()) {
		t.Fatalf("attempt not stamped with the injected clock: %v", att.At)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected one persisted attempt, got %d", len(repo.saved))
	}

	emitted := emitter.Events()
	if len(emitted) != 1 || emitted[0].Kind != "attempt.recorded" {
		t.Fatalf("expected attempt.recorded, got %+v", emitted)
	}
	if emitted[0].Payload["risk_score"].(float64) < 1.0 {
		t.Fatalf("failed attempt should score at least 1.0: %v", emitted[0].Payload["risk_score"])
	}
}

func TestRecord_RejectsUnknownOutcome(t *testing.T) {
	repo := &fakeAttemptRepo{}
	recorder := attemptsrv.NewRecorder(repo, kernel.NewFixedClock(time.Now()), events.NewNopEmitter())

	_, err := recorder.Record(context.Background(), kernel.NewIdentityID("identity-1"), attempt.Outcome("exploded"), "password", nil)
	if err == nil {
		t.Fatal("expected unknown outcome to be rejected")
	}
	if len(repo.saved) != 0 {
		t.Fatal("rejected attempt must not be persisted")
	}
}

func TestScore(t *testing.T) {
	recorder := attemptsrv.NewRecorder(&fakeAttemptRepo{}, kernel.NewFixedClock(time.Now()), events.NewNopEmitter())

	failed, _ := attempt.New(kernel.NewAttemptID("att-1"), kernel.NewIdentityID("identity-1"), attempt.OutcomeFailed, "password", time.Now(), nil)
	ok, _ := attempt.New(kernel.NewAttemptID("att-2"), kernel.NewIdentityID("identity-1"), attempt.OutcomeSucceeded, "password", time.Now(), nil)

	if recorder.Score(failed) < 1.0 {
		t.Fatalf("failed attempt underscored: %v", recorder.Score(failed))
	}
	if recorder.Score(ok) != 0.0 {
		t.Fatalf("succeeded attempt scored: %v", recorder.Score(ok))
	}
}

func TestHistory_Paginates(t *testing.T) {
	repo := &fakeAttemptRepo{}
	clock := kernel.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	recorder := attemptsrv.NewRecorder(repo, clock, events.NewNopEmitter())

	id := kernel.NewIdentityID("identity-1")
	for i := 0; i < 5; i++ {
		if _, err := recorder.Record(context.Background(), id, attempt.OutcomeSucceeded, "password", map[string]interface{}{"n": fmt.Sprint(i)}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
		clock.Advance(time.Second)
	}

	page, err := recorder.History(context.Background(), id, kernel.PaginationOptions{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items on page 2, got %d", len(page.Items))
	}
	if page.Page.Total != 5 || page.Page.Pages != 3 {
		t.Fatalf("pagination metadata diverged: %+v", page.Page)
	}
}

func TestHistory_DefaultsPagination(t *testing.T) {
	repo := &fakeAttemptRepo{}
	recorder := attemptsrv.NewRecorder(repo, kernel.NewFixedClock(time.Now()), events.NewNopEmitter())

	page, err := recorder.History(context.Background(), kernel.NewIdentityID("identity-1"), kernel.PaginationOptions{})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if page.Page.Number != 1 || page.Page.Size != 50 {
		t.Fatalf("expected defaults page=1 size=50, got %+v", page.Page)
	}
}
