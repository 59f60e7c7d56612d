package oauthsrv_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/iam/identity"
	"github.com/idfort/idfort/pkg/iam/oauth"
	"github.com/idfort/idfort/pkg/iam/oauth/oauthsrv"
	"github.com/idfort/idfort/pkg/iam/token"
	"github.com/idfort/idfort/pkg/kernel"
)

func init() {
	iam.ExpiryPolicies.MustRegister("ten-minutes", iam.FixedTTL(10*time.Minute))
}

// --- Fakes ---

type fakeIdentityRepo struct {
	mu    sync.Mutex
	items map[kernel.IdentityID]identity.Identity
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{items: make(map[kernel.IdentityID]identity.Identity)}
}

func (r *fakeIdentityRepo) Get(_ context.Context, id kernel.IdentityID) (*identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.items[id]
	if !ok {
		return nil, identity.ErrIdentityNotFound()
	}
	return &ident, nil
}

func (r *fakeIdentityRepo) Save(_ context.Context, ident identity.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[ident.ID] = ident
	return nil
}

type fakeClientRepo struct {
	mu    sync.Mutex
	items map[kernel.ClientID]oauth.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{items: make(map[kernel.ClientID]oauth.Client)}
}

func (r *fakeClientRepo) Get(_ context.Context, id kernel.ClientID) (*oauth.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.items[id]
	if !ok {
		return nil, errx.NotFound("client not found")
	}
	return &client, nil
}

func (r *fakeClientRepo) Save(_ context.Context, client oauth.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[client.ID] = client
	return nil
}

// fakeCodeRepo holds codes in memory. Exchange runs under one lock, so two
// concurrent exchanges of the same code serialize the same way the database
// transaction does.
type fakeCodeRepo struct {
	mu     sync.Mutex
	codes  map[kernel.CodeID]oauth.AuthorizationCode
	tokens []token.Token
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: make(map[kernel.CodeID]oauth.AuthorizationCode)}
}

func (r *fakeCodeRepo) Save(_ context.Context, code oauth.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.ID] = code
	return nil
}

func (r *fakeCodeRepo) FindByID(_ context.Context, id kernel.CodeID) (*oauth.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[id]
	if !ok {
		return nil, oauth.ErrCodeInvalid()
	}
	return &code, nil
}

func (r *fakeCodeRepo) Exchange(_ context.Context, id kernel.CodeID, now time.Time, mint oauth.MintFunc) (*token.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[id]
	if !ok || !code.Exchangeable(now) {
		return nil, oauth.ErrCodeInvalid()
	}

	tok, err := mint(&code)
	if err != nil {
		return nil, err
	}

	code.MarkUsed()
	r.codes[id] = code
	r.tokens = append(r.tokens, tok)
	return &tok, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(tok token.Token) (string, error) {
	return "bearer-" + tok.ID.String(), nil
}

// --- Harness ---

type harness struct {
	service   *oauthsrv.Service
	codes     *fakeCodeRepo
	clock     *kernel.FixedClock
	publisher *events.MemoryPublisher
	emitter   *events.MemoryEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	identities := newFakeIdentityRepo()
	if err := identities.Save(context.Background(), identity.Identity{
		ID:        kernel.NewIdentityID("identity-1"),
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seeding identity failed: %v", err)
	}

	clients := newFakeClientRepo()
	if err := clients.Save(context.Background(), oauth.Client{
		ID:            kernel.NewClientID("client-1"),
		Name:          "console",
		AllowedScopes: []string{"read:profile", "tokens:revoke"},
	}); err != nil {
		t.Fatalf("seeding client failed: %v", err)
	}

	codes := newFakeCodeRepo()
	clock := kernel.NewFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	publisher := events.NewMemoryPublisher()
	emitter := events.NewMemoryEmitter()

	service := oauthsrv.NewService(
		codes,
		clients,
		identities,
		fakeSigner{},
		clock,
		kernel.NewSequentialIDGenerator("code"),
		publisher,
		emitter,
	)

	return &harness{service: service, codes: codes, clock: clock, publisher: publisher, emitter: emitter}
}

// --- Authorize tests ---

func TestAuthorize_IssuesCode(t *testing.T) {
	h := newHarness(t)

	code, err := h.service.Authorize(context.Background(),
		kernel.NewIdentityID("identity-1"),
		kernel.NewClientID("client-1"),
		"read:profile tokens:revoke",
		"ten-minutes",
	)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}

	if len(code.ID.String()) < oauth.MinCodeLength {
		t.Fatalf("issued code identifier too short: %d", len(code.ID.String()))
	}
	if !code.ExpiresAt.Equal(h.clock.Now().Add(10 * time.Minute)) {
		t.Fatalf("expiry not derived from the policy: %v", code.ExpiresAt)
	}
	if len(code.Scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %v", code.Scopes)
	}
}

func TestAuthorize_EventCarriesNoCodeValue(t *testing.T) {
	h := newHarness(t)

	code, err := h.service.Authorize(context.Background(),
		kernel.NewIdentityID("identity-1"),
		kernel.NewClientID("client-1"),
		"read:profile",
		"ten-minutes",
	)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}

	published := h.publisher.Events()
	if len(published) != 1 || published[0].Kind != "oauth.code_issued" {
		t.Fatalf("expected one oauth.code_issued event, got %+v", published)
	}
	if published[0].AggregateID == code.ID.String() {
		t.Fatal("event aggregate must not be the secret code value")
	}
	for k, v := range published[0].Payload {
		if s, ok := v.(string); ok && s == code.ID.String() {
			t.Fatalf("payload field %q leaks the code value", k)
		}
	}
}

func TestAuthorize_UnknownClient(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Authorize(context.Background(),
		kernel.NewIdentityID("identity-1"),
		kernel.NewClientID("ghost"),
		"read:profile",
		"ten-minutes",
	)
	if !errx.HasCode(err, "auth.client.not_found") {
		t.Fatalf("expected auth.client.not_found, got %v", err)
	}
}

func TestAuthorize_MalformedScope(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Authorize(context.Background(),
		kernel.NewIdentityID("identity-1"),
		kernel.NewClientID("client-1"),
		"Read:Profile",
		"ten-minutes",
	)
	if !errx.HasCode(err, "auth.scope.invalid") {
		t.Fatalf("expected auth.scope.invalid, got %v", err)
	}
}

func TestAuthorize_ScopeNotGranted(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Authorize(context.Background(),
		kernel.NewIdentityID("identity-1"),
		kernel.NewClientID("client-1"),
		"admin:all",
		"ten-minutes",
	)
	if !errx.HasCode(err, "auth.scope.invalid") {
		t.Fatalf("expected auth.scope.invalid, got %v", err)
	}
}

func TestAuthorize_UnknownPolicyFailsClosed(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Authorize(context.Background(),
		kernel.NewIdentityID("identity-1"),
		kernel.NewClientID("client-1"),
		"read:profile",
		"nobody-registered-this",
	)
	if !errx.HasCode(err, "IAM_UNKNOWN_ENTRY") {
		t.Fatalf("expected a fail-closed registry lookup, got %v", err)
	}
}

// --- Exchange tests ---

func issueCode(t *testing.T, h *harness) *oauth.AuthorizationCode {
	t.Helper()
	code, err := h.service.Authorize(context.Background(),
		kernel.NewIdentityID("identity-1"),
		kernel.NewClientID("client-1"),
		"read:profile",
		"ten-minutes",
	)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	return code
}

func TestExchange_HappyPath(t *testing.T) {
	h := newHarness(t)
	code := issueCode(t, h)

	tok, bearer, err := h.service.Exchange(context.Background(), code.ID)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if tok.IdentityID != code.IdentityID {
		t.Fatalf("token bound to wrong identity: %s", tok.IdentityID)
	}
	if len(tok.Scopes) != 1 || tok.Scopes[0] != "read:profile" {
		t.Fatalf("token scopes diverge from the code: %v", tok.Scopes)
	}
	if !strings.HasPrefix(bearer, "bearer-") {
		t.Fatalf("bearer not produced by the signer: %q", bearer)
	}
}

func TestExchange_SecondAttemptFails(t *testing.T) {
	h := newHarness(t)
	code := issueCode(t, h)

	if _, _, err := h.service.Exchange(context.Background(), code.ID); err != nil {
		t.Fatalf("first exchange failed: %v", err)
	}

	_, _, err := h.service.Exchange(context.Background(), code.ID)
	if !errx.HasCode(err, "auth.code.invalid") {
		t.Fatalf("expected auth.code.invalid on re-exchange, got %v", err)
	}
}

func TestExchange_ExpiredCode(t *testing.T) {
	h := newHarness(t)
	code := issueCode(t, h)

	// Expiry is inclusive: landing exactly on expires-at is already too late.
	h.clock.Advance(10 * time.Minute)

	_, _, err := h.service.Exchange(context.Background(), code.ID)
	if !errx.HasCode(err, "auth.code.invalid") {
		t.Fatalf("expected auth.code.invalid for expired code, got %v", err)
	}
}

func TestExchange_UnknownCode(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.service.Exchange(context.Background(), kernel.NewCodeID(strings.Repeat("x", 32)))
	if !errx.HasCode(err, "auth.code.invalid") {
		t.Fatalf("expected auth.code.invalid for unknown code, got %v", err)
	}
}

func TestExchange_ConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	code := issueCode(t, h)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.service.Exchange(context.Background(), code.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var winners, losers int
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		if !errx.HasCode(err, "auth.code.invalid") {
			t.Fatalf("loser saw the wrong violation: %v", err)
		}
		losers++
	}

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if losers != attempts-1 {
		t.Fatalf("expected %d losers, got %d", attempts-1, losers)
	}
	if len(h.codes.tokens) != 1 {
		t.Fatalf("expected exactly one minted token, got %d", len(h.codes.tokens))
	}
}

func TestExchange_PublishesOrderedBatch(t *testing.T) {
	h := newHarness(t)
	code := issueCode(t, h)

	if _, _, err := h.service.Exchange(context.Background(), code.ID); err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	forIdentity := h.publisher.ByAggregate(code.IdentityID.String())
	if len(forIdentity) != 2 {
		t.Fatalf("expected issue + exchange events for the identity, got %d", len(forIdentity))
	}
	if forIdentity[0].Kind != "oauth.code_issued" || forIdentity[1].Kind != "oauth.code_exchanged" {
		t.Fatalf("per-aggregate order broken: %q then %q", forIdentity[0].Kind, forIdentity[1].Kind)
	}
}
