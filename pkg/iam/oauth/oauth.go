package oauth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/idfort/idfort/pkg/errx"
	"github.com/idfort/idfort/pkg/kernel"
)

// MinCodeLength is the structural lower bound on authorization-code
// identifiers. The identifier is the code value, so anything shorter is a
// construction defect, not a business outcome.
const MinCodeLength = 32

// ============================================================================
// Client
// ============================================================================

// Client is an OAuth client application allowed to request codes.
type Client struct {
	ID            kernel.ClientID `json:"id"`
	Name          string          `json:"name"`
	AllowedScopes []string        `json:"allowed_scopes"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AllowsScopes reports whether every requested scope is in the client's
// grant list. A client holding "*" may request anything.
func (c *Client) AllowsScopes(scopes []string) bool {
	allowed := make(map[string]bool, len(c.AllowedScopes))
	for _, s := range c.AllowedScopes {
		allowed[s] = true
	}
	if allowed["*"] {
		return true
	}
	for _, s := range scopes {
		if !allowed[s] {
			return false
		}
	}
	return true
}

// ============================================================================
// AuthorizationCode
// ============================================================================

// AuthorizationCode is a single-use, time-boxed OAuth2 grant artifact. The
// identifier is the secret code value itself; it never travels through
// events or logs.
type AuthorizationCode struct {
	ID         kernel.CodeID     `json:"id"`
	IdentityID kernel.IdentityID `json:"identity_id"`
	ClientID   kernel.ClientID   `json:"client_id"`
	Scopes     []string          `json:"scopes"`
	IssuedAt   time.Time         `json:"issued_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Used       bool              `json:"used"`
}

// NewAuthorizationCode constructs a code, failing fast on structural
// defects. Content of the identifier is not inspected beyond its length;
// entropy is the generator's contract.
func NewAuthorizationCode(
	id kernel.CodeID,
	identityID kernel.IdentityID,
	clientID kernel.ClientID,
	scopes []string,
	issuedAt time.Time,
	expiresAt time.Time,
) (AuthorizationCode, error) {
	if len(id.String()) < MinCodeLength {
		return AuthorizationCode{}, fmt.Errorf("oauth: code identifier must be at least %d characters, got %d", MinCodeLength, len(id.String()))
	}
	if identityID.IsEmpty() {
		return AuthorizationCode{}, fmt.Errorf("oauth: identity reference must not be empty")
	}
	if clientID.IsEmpty() {
		return AuthorizationCode{}, fmt.Errorf("oauth: client reference must not be empty")
	}
	if !expiresAt.After(issuedAt) {
		return AuthorizationCode{}, fmt.Errorf("oauth: expiry must be after issuance")
	}

	copied := make([]string, len(scopes))
	copy(copied, scopes)

	return AuthorizationCode{
		ID:         id,
		IdentityID: identityID,
		ClientID:   clientID,
		Scopes:     copied,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// IsExpired reports whether the code is past its window at the given
// instant. Expiry is inclusive: now == expires-at is already expired.
func (c *AuthorizationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Exchangeable reports whether the code can still be traded for a token.
func (c *AuthorizationCode) Exchangeable(now time.Time) bool {
	return !c.Used && !c.IsExpired(now)
}

// MarkUsed flips the single-use flag. Exactly one exchange ever does this;
// the persistence layer enforces the race.
func (c *AuthorizationCode) MarkUsed() {
	c.Used = true
}

// ============================================================================
// Scope grammar
// ============================================================================

// scopeToken matches one scope: lowercase segments joined by ":", e.g.
// "read:profile" or "tokens:revoke".
var scopeToken = regexp.MustCompile(`^[a-z0-9_-]+(:[a-z0-9_-]+|:\*)*$`)

// ParseScopes validates a raw scope string against the accepted grammar
// (space-separated scope tokens) and returns the scope set. A malformed
// string yields the auth.scope.invalid violation, never an error escalation.
func ParseScopes(raw string) ([]string, *errx.Error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, ErrInvalidScope().WithDetail("scope", raw)
	}

	seen := make(map[string]bool, len(fields))
	scopes := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "*" && !scopeToken.MatchString(f) {
			return nil, ErrInvalidScope().WithDetail("scope", f)
		}
		if !seen[f] {
			seen[f] = true
			scopes = append(scopes, f)
		}
	}
	return scopes, nil
}

// ============================================================================
// Error Registry
// ============================================================================

// ErrRegistry publishes dotted machine-readable codes: auth.scope.invalid,
// auth.client.not_found, auth.code.invalid.
var ErrRegistry = errx.NewDottedRegistry("auth")

var (
	CodeInvalidScope = ErrRegistry.Register("scope.invalid", errx.TypeValidation, http.StatusBadRequest, "Requested scope is not valid")

	CodeClientNotFound = ErrRegistry.Register("client.not_found", errx.TypeNotFound, http.StatusNotFound, "Client not found")

	// CodeCodeInvalid collapses not-found, already-used, and expired into
	// one outcome so a caller cannot enumerate which applied.
	CodeCodeInvalid = ErrRegistry.Register("code.invalid", errx.TypeAuthorization, http.StatusBadRequest, "Authorization code is invalid")
)

// ErrInvalidScope is a pure factory: same code, same message, every call.
func ErrInvalidScope() *errx.Error {
	return ErrRegistry.New(CodeInvalidScope)
}

func ErrClientNotFound() *errx.Error {
	return ErrRegistry.New(CodeClientNotFound)
}

func ErrCodeInvalid() *errx.Error {
	return ErrRegistry.New(CodeCodeInvalid)
}
