package iam

import (
	"context"
	"time"

	"github.com/idfort/idfort/pkg/kernel"
)

// ============================================================================
// Extension Points
// ============================================================================

// FactorVerifier evaluates a submitted MFA factor against stored verifier
// material. Implementations are registered under their method name.
type FactorVerifier interface {
	// Enroll derives the stored verifier material from a raw factor secret.
	// The raw secret itself is never persisted.
	Enroll(factor string) (string, error)

	// Verify reports whether submitted matches the stored material.
	Verify(stored, submitted string) bool
}

// ExpiryPolicy names a TTL rule for issued authorization codes.
type ExpiryPolicy interface {
	TTL() time.Duration
}

// RiskSignal scores one authentication attempt. The concrete scoring
// algorithm lives with the registrant; the core only aggregates.
type RiskSignal interface {
	Evaluate(outcome string, metadata map[string]interface{}) float64
}

// IdentityProvider resolves an external principal reference to a local
// identity. Concrete SSO adapters live outside the core.
type IdentityProvider interface {
	Resolve(ctx context.Context, externalRef string) (kernel.IdentityID, error)
}

// ============================================================================
// Process-wide registries, populated by the composition root at startup.
// ============================================================================

var (
	AuthMethods       = NewNamedRegistry[FactorVerifier]("auth_method")
	ExpiryPolicies    = NewNamedRegistry[ExpiryPolicy]("expiry_policy")
	RiskSignals       = NewNamedRegistry[RiskSignal]("risk_signal")
	IdentityProviders = NewNamedRegistry[IdentityProvider]("identity_provider")
)

// FixedTTL is the common ExpiryPolicy: a constant duration.
type FixedTTL time.Duration

func (f FixedTTL) TTL() time.Duration { return time.Duration(f) }
