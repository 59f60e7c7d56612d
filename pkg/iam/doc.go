// Package iam is the authentication domain core: identity representation,
// OAuth2 authorization-code issuance and exchange, token lifecycle, and the
// MFA challenge state machine.
//
// # Overview
//
// The package is organized into sub-packages, one per aggregate:
//
//   - iam/identity  — the opaque authenticating principal
//   - iam/oauth     — clients, authorization codes, authorize/exchange flow
//   - iam/token     — issued tokens, validation, cascading revocation
//   - iam/mfa       — step-up challenge state machine
//   - iam/attempt   — append-only authentication attempt log
//
// # Architecture
//
// Each sub-package follows the same shape: aggregate types and their error
// registry at the package root, consumed ports in port.go, services in
// <agg>srv, and persistence adapters in <agg>infra. Services receive every
// collaborator (repositories, clock, ID generator, event publisher,
// observability emitter) through their constructor; there is no global
// container and no ambient state shared across requests.
//
// # Failure model
//
// Expected business outcomes (invalid scope, expired challenge, spent code)
// are violations: *errx.Error values with stable codes, returned rather than
// panicked. Constructors fail fast with plain errors on structural defects,
// such as an authorization-code identifier under 32 characters. Persistence
// failures are wrapped as internal/external errors and surface unchanged;
// the core never retries.
//
// # Extension registries
//
// Auth methods, expiry policies, risk signals, and identity providers are
// name-keyed registries in this package. The composition root registers the
// built-ins at startup; lookups for unregistered names fail closed.
package iam
