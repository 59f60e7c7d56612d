package iamcontainer

import (
	"context"

	"github.com/idfort/idfort/pkg/config"
	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/events/eventslogx"
	"github.com/idfort/idfort/pkg/events/eventsredis"
	"github.com/idfort/idfort/pkg/iam"
	"github.com/idfort/idfort/pkg/iam/attempt/attemptinfra"
	"github.com/idfort/idfort/pkg/iam/attempt/attemptsrv"
	"github.com/idfort/idfort/pkg/iam/identity"
	"github.com/idfort/idfort/pkg/iam/identity/identityinfra"
	"github.com/idfort/idfort/pkg/iam/mfa"
	"github.com/idfort/idfort/pkg/iam/mfa/mfainfra"
	"github.com/idfort/idfort/pkg/iam/mfa/mfasrv"
	"github.com/idfort/idfort/pkg/iam/oauth"
	"github.com/idfort/idfort/pkg/iam/oauth/oauthinfra"
	"github.com/idfort/idfort/pkg/iam/oauth/oauthsrv"
	"github.com/idfort/idfort/pkg/iam/token"
	"github.com/idfort/idfort/pkg/iam/token/tokeninfra"
	"github.com/idfort/idfort/pkg/iam/token/tokensrv"
	"github.com/idfort/idfort/pkg/kernel"
	"github.com/idfort/idfort/pkg/logx"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// Everything comes through here; no hidden globals.
// ---------------------------------------------------------------------------

type Deps struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Cfg   *config.Config
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module. Only expose what the
// composition root or other modules actually need.
// ---------------------------------------------------------------------------

type Container struct {
	// Services — available for cross-module consumption
	OAuthService    *oauthsrv.Service
	TokenService    *tokensrv.Service
	MFAService      *mfasrv.Service
	AttemptRecorder *attemptsrv.Recorder

	// Repositories exposed for adapter layers (provisioning, admin tools)
	IdentityRepo identity.Repository
	ClientRepo   oauth.ClientRepository

	// Outbound ports, shared by every service above
	Publisher events.Publisher
	Emitter   events.Emitter
}

// New constructs the IAM dependency graph.
// Order matters: infra -> repos -> services.
func New(deps Deps) *Container {
	logx.Info("Initializing IAM container")

	c := &Container{}

	// ── Shared collaborators ─────────────────────────────────────────────

	clock := kernel.NewSystemClock()
	idgen := kernel.NewRandomIDGenerator(24)

	if deps.Cfg.Redis.Enabled && deps.Redis != nil {
		c.Publisher = eventsredis.NewStreamPublisher(deps.Redis)
		logx.Info("Using Redis Streams event publisher")
	} else {
		c.Publisher = events.NewMemoryPublisher()
		logx.Warn("Using in-memory event publisher (not recommended for production)")
	}
	c.Emitter = eventslogx.NewEmitter()

	// ── Repositories ─────────────────────────────────────────────────────

	c.IdentityRepo = identityinfra.NewPostgresIdentityRepository(deps.DB)
	c.ClientRepo = oauthinfra.NewPostgresClientRepository(deps.DB)
	codeRepo := oauthinfra.NewPostgresCodeRepository(deps.DB)
	tokenRepo := tokeninfra.NewPostgresTokenRepository(deps.DB)
	challengeRepo := mfainfra.NewPostgresChallengeRepository(deps.DB)
	attemptRepo := attemptinfra.NewPostgresAttemptRepository(deps.DB)

	// ── Registries ───────────────────────────────────────────────────────

	registerBuiltins(deps.Cfg, c.IdentityRepo)

	// ── Domain services ──────────────────────────────────────────────────

	signer := token.NewJWTSigner(
		deps.Cfg.Auth.JWT.Secret,
		deps.Cfg.Auth.JWT.TTL,
		deps.Cfg.Auth.JWT.Issuer,
		clock,
	)

	c.TokenService = tokensrv.NewService(tokenRepo, signer, clock, idgen, c.Publisher, c.Emitter)
	c.OAuthService = oauthsrv.NewService(codeRepo, c.ClientRepo, c.IdentityRepo, signer, clock, idgen, c.Publisher, c.Emitter)
	c.MFAService = mfasrv.NewService(challengeRepo, clock, idgen, c.Publisher, c.Emitter)
	c.AttemptRecorder = attemptsrv.NewRecorder(attemptRepo, clock, c.Emitter)

	logx.Info("IAM container initialized")
	return c
}

// registerBuiltins populates the process-wide extension registries. Running
// twice (container rebuilt in one process) is tolerated: duplicates are
// logged and skipped.
func registerBuiltins(cfg *config.Config, identities identity.Repository) {
	register := func(err error) {
		if err != nil {
			logx.WithError(err).Warn("Registry entry already present, skipping")
		}
	}

	register(iam.AuthMethods.Register(mfa.MethodSecret, mfa.NewBcryptFactorVerifier(cfg.Auth.BcryptCost)))

	register(iam.ExpiryPolicies.Register("default", iam.FixedTTL(cfg.Auth.CodeTTL)))
	register(iam.ExpiryPolicies.Register("short", iam.FixedTTL(cfg.Auth.ShortCodeTTL)))

	register(iam.IdentityProviders.Register("local", localProvider{identities: identities}))

	register(iam.RiskSignals.Register("failed_outcome", failedOutcomeSignal{}))
}

// localProvider resolves external references that are already local
// identity IDs. Concrete SSO providers register themselves the same way
// from outside the core.
type localProvider struct {
	identities identity.Repository
}

func (p localProvider) Resolve(ctx context.Context, externalRef string) (kernel.IdentityID, error) {
	ident, err := p.identities.Get(ctx, kernel.NewIdentityID(externalRef))
	if err != nil {
		return "", err
	}
	return ident.ID, nil
}

// failedOutcomeSignal is the built-in baseline risk signal: failures score,
// everything else does not.
type failedOutcomeSignal struct{}

func (failedOutcomeSignal) Evaluate(outcome string, _ map[string]interface{}) float64 {
	if outcome == "failed" {
		return 1.0
	}
	return 0.0
}
