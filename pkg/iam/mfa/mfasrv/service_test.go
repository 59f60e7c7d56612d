package mfasrv_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/iam/mfa"
	"github.com/idfort/idfort/pkg/iam/mfa/mfasrv"
	"github.com/idfort/idfort/pkg/kernel"
)

// plainVerifier compares factors verbatim.
type plainVerifier struct{}

func (plainVerifier) Enroll(factor string) (string, error) { return factor, nil }
func (plainVerifier) Verify(stored, submitted string) bool { return stored == submitted }

func init() {
	iam.AuthMethods.MustRegister("plain", plainVerifier{})
}

// --- Fakes ---

type fakeChallengeRepo struct {
	mu    sync.Mutex
	items map[kernel.ChallengeID]mfa.Challenge
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{items: make(map[kernel.ChallengeID]mfa.Challenge)}
}

func (r *fakeChallengeRepo) Save(_ context.Context, challenge mfa.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[challenge.ID] = challenge
	return nil
}

func (r *fakeChallengeRepo) FindByID(_ context.Context, id kernel.ChallengeID) (*mfa.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.items[id]
	if !ok {
		return nil, errx.NotFound("challenge not found")
	}
	return &challenge, nil
}

// --- Harness ---

type harness struct {
	service   *mfasrv.Service
	repo      *fakeChallengeRepo
	clock     *kernel.FixedClock
	publisher *events.MemoryPublisher
	emitter   *events.MemoryEmitter
}

func newHarness() *harness {
	repo := newFakeChallengeRepo()
	clock := kernel.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	publisher := events.NewMemoryPublisher()
	emitter := events.NewMemoryEmitter()
	service := mfasrv.NewService(repo, clock, kernel.NewSequentialIDGenerator("challenge"), publisher, emitter)
	return &harness{service: service, repo: repo, clock: clock, publisher: publisher, emitter: emitter}
}

func (h *harness) create(t *testing.T) *mfa.Challenge {
	t.Helper()
	challenge, err := h.service.Create(context.Background(), kernel.NewIdentityID("identity-1"), "plain", "hunter2", 5*time.Minute)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return challenge
}

// --- Create tests ---

func TestCreate(t *testing.T) {
	h := newHarness()
	challenge := h.create(t)

	if challenge.Status != mfa.StatusPending {
		t.Fatalf("expected pending, got %s", challenge.Status)
	}
	if !challenge.ExpiresAt.Equal(h.clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("window not anchored at the clock reading: %v", challenge.ExpiresAt)
	}

	published := h.publisher.ByAggregate(challenge.ID.String())
	if len(published) != 1 || published[0].Kind != "mfa.challenge_created" {
		t.Fatalf("expected mfa.challenge_created, got %+v", published)
	}
}

func TestCreate_UnknownMethodFailsClosed(t *testing.T) {
	h := newHarness()

	_, err := h.service.Create(context.Background(), kernel.NewIdentityID("identity-1"), "nobody-registered-this", "hunter2", 5*time.Minute)
	if !errx.HasCode(err, "MFA_METHOD_UNKNOWN") {
		t.Fatalf("expected fail-closed method lookup, got %v", err)
	}
	if len(h.repo.items) != 0 {
		t.Fatal("nothing must be persisted for an unknown method")
	}
}

// --- Verify tests ---

func TestVerify_HappyPath(t *testing.T) {
	h := newHarness()
	challenge := h.create(t)

	h.clock.Advance(4 * time.Minute)

	verified, err := h.service.Verify(context.Background(), challenge.ID, "hunter2")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verified.Status != mfa.StatusVerified {
		t.Fatalf("expected verified, got %s", verified.Status)
	}

	stored, _ := h.repo.FindByID(context.Background(), challenge.ID)
	if stored.Status != mfa.StatusVerified {
		t.Fatalf("verified state not persisted: %s", stored.Status)
	}

	published := h.publisher.ByAggregate(challenge.ID.String())
	if published[len(published)-1].Kind != "mfa.challenge_verified" {
		t.Fatalf("expected mfa.challenge_verified last, got %q", published[len(published)-1].Kind)
	}
}

func TestVerify_MismatchDoesNotConsumeSession(t *testing.T) {
	h := newHarness()
	challenge := h.create(t)

	_, err := h.service.Verify(context.Background(), challenge.ID, "wrong")
	if !errx.HasCode(err, "MFA_FACTOR_MISMATCH") {
		t.Fatalf("expected MFA_FACTOR_MISMATCH, got %v", err)
	}

	stored, _ := h.repo.FindByID(context.Background(), challenge.ID)
	if stored.Status != mfa.StatusPending {
		t.Fatalf("mismatch moved the stored state to %s", stored.Status)
	}

	// Correct factor still goes through.
	if _, err := h.service.Verify(context.Background(), challenge.ID, "hunter2"); err != nil {
		t.Fatalf("retry after mismatch failed: %v", err)
	}
}

func TestVerify_ExpiredWindowPersistsTerminalState(t *testing.T) {
	h := newHarness()
	challenge := h.create(t)

	h.clock.Advance(6 * time.Minute)

	_, err := h.service.Verify(context.Background(), challenge.ID, "hunter2")
	if !errx.HasCode(err, "MFA_EXPIRED") {
		t.Fatalf("expected MFA_EXPIRED, got %v", err)
	}

	stored, _ := h.repo.FindByID(context.Background(), challenge.ID)
	if stored.Status != mfa.StatusExpired {
		t.Fatalf("expired state not persisted: %s", stored.Status)
	}

	published := h.publisher.ByAggregate(challenge.ID.String())
	if published[len(published)-1].Kind != "mfa.challenge_expired" {
		t.Fatalf("expected mfa.challenge_expired, got %q", published[len(published)-1].Kind)
	}

	// Later attempts keep failing the same way, without re-publishing.
	before := len(h.publisher.Events())
	_, err = h.service.Verify(context.Background(), challenge.ID, "hunter2")
	if !errx.HasCode(err, "MFA_EXPIRED") {
		t.Fatalf("expected MFA_EXPIRED on retry, got %v", err)
	}
	if len(h.publisher.Events()) != before {
		t.Fatal("terminal retry published another transition event")
	}
}

func TestVerify_CompletedChallenge(t *testing.T) {
	h := newHarness()
	challenge := h.create(t)

	if _, err := h.service.Verify(context.Background(), challenge.ID, "hunter2"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	_, err := h.service.Verify(context.Background(), challenge.ID, "hunter2")
	if !errx.HasCode(err, "MFA_CHALLENGE_COMPLETED") {
		t.Fatalf("expected MFA_CHALLENGE_COMPLETED, got %v", err)
	}
}

func TestVerify_UnknownChallenge(t *testing.T) {
	h := newHarness()

	_, err := h.service.Verify(context.Background(), kernel.NewChallengeID("ghost"), "hunter2")
	if !errx.HasCode(err, "MFA_CHALLENGE_NOT_FOUND") {
		t.Fatalf("expected MFA_CHALLENGE_NOT_FOUND, got %v", err)
	}
}

func TestVerify_FailureEmitsObservabilityEvent(t *testing.T) {
	h := newHarness()
	challenge := h.create(t)

	_, _ = h.service.Verify(context.Background(), challenge.ID, "wrong")

	var sawFailure bool
	for _, ev := range h.emitter.Events() {
		if ev.Kind == "mfa.verify_failed" {
			sawFailure = true
			if ev.Payload["code"] != "MFA_FACTOR_MISMATCH" {
				t.Fatalf("failure event carries wrong code: %v", ev.Payload["code"])
			}
		}
	}
	if !sawFailure {
		t.Fatal("expected an mfa.verify_failed observability event")
	}
}
