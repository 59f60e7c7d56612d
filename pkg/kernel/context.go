package kernel

// AccessContext is the resolved result of validating a bearer credential.
// Adapters attach it to the request context; the domain only reads it.
type AccessContext struct {
	IdentityID IdentityID `json:"identity_id"`
	TokenID    TokenID    `json:"token_id"`
	Scopes     []string   `json:"scopes"`
}

// IsValid reports whether the context carries a usable principal.
func (ac *AccessContext) IsValid() bool {
	return !ac.IdentityID.IsEmpty() && !ac.TokenID.IsEmpty()
}

// HasScope reports whether the context grants a specific scope.
// "*" grants everything; a trailing ":*" grants the whole prefix
// (e.g. "tokens:*" covers "tokens:revoke").
func (ac *AccessContext) HasScope(scope string) bool {
	for _, s := range ac.Scopes {
		if s == scope || s == "*" {
			return true
		}
		if len(s) > 2 && s[len(s)-2:] == ":*" {
			prefix := s[:len(s)-2]
			if len(scope) > len(prefix) && scope[:len(prefix)] == prefix && scope[len(prefix)] == ':' {
				return true
			}
		}
	}
	return false
}

// HasAllScopes reports whether every requested scope is granted.
func (ac *AccessContext) HasAllScopes(scopes ...string) bool {
	for _, scope := range scopes {
		if !ac.HasScope(scope) {
			return false
		}
	}
	return true
}

type ContextKey string

// AccessContextKey stores the AccessContext in a context.Context.
const AccessContextKey ContextKey = "access_context"
