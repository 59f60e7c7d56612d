package attempt

import (
	"fmt"
	"time"

	"github.com/idfort/idfort/pkg/kernel"
)

// Outcome is the recorded result of one authentication attempt.
type Outcome string

const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeFailed      Outcome = "failed"
	OutcomeMFARequired Outcome = "mfa_required"
)

// AuthenticationAttempt is one append-only record of a login or step-up
// attempt. Once constructed it is never mutated; the aggregate exists for
// audit and risk evaluation, not for control flow.
type AuthenticationAttempt struct {
	ID         kernel.AttemptID       `json:"id"`
	IdentityID kernel.IdentityID      `json:"identity_id"`
	Outcome    Outcome                `json:"outcome"`
	Method     string                 `json:"method"`
	At         time.Time              `json:"at"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// New constructs an attempt record, copying the correlation context so the
// caller cannot mutate it afterwards.
func New(
	id kernel.AttemptID,
	identityID kernel.IdentityID,
	outcome Outcome,
	method string,
	at time.Time,
	correlation map[string]interface{},
) (AuthenticationAttempt, error) {
	if id.IsEmpty() {
		return AuthenticationAttempt{}, fmt.Errorf("attempt: identifier must not be empty")
	}
	if identityID.IsEmpty() {
		return AuthenticationAttempt{}, fmt.Errorf("attempt: identity reference must not be empty")
	}
	switch outcome {
	case OutcomeSucceeded, OutcomeFailed, OutcomeMFARequired:
	default:
		return AuthenticationAttempt{}, fmt.Errorf("attempt: unknown outcome %q", outcome)
	}

	var copied map[string]interface{}
	if correlation != nil {
		copied = make(map[string]interface{}, len(correlation))
		for k, v := range correlation {
			copied[k] = v
		}
	}

	return AuthenticationAttempt{
		ID:         id,
		IdentityID: identityID,
		Outcome:    outcome,
		Method:     method,
		At:         at,
		Context:    copied,
	}, nil
}
