package events

import (
	"context"
	"net/http"
	"time"

	"github.com/idfort/idfort/pkg/errx"
)

// Event is an immutable outbound notification produced by an aggregate.
// The payload carries metadata only; secret material (code values, token
// values, factor secrets) never travels through an event.
type Event struct {
	ID          string                 `json:"id"`
	Kind        string                 `json:"kind"`
	AggregateID string                 `json:"aggregate_id"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	EmittedAt   time.Time              `json:"emitted_at"`
}

// New builds an event, copying the payload so later mutation by the caller
// cannot reach an already-emitted event.
func New(id, kind, aggregateID string, payload map[string]interface{}, emittedAt time.Time) Event {
	var copied map[string]interface{}
	if payload != nil {
		copied = make(map[string]interface{}, len(payload))
		for k, v := range payload {
			copied[k] = v
		}
	}
	return Event{
		ID:          id,
		Kind:        kind,
		AggregateID: aggregateID,
		Payload:     copied,
		EmittedAt:   emittedAt,
	}
}

// Publisher forwards domain events to downstream consumers. Relative order
// of events from the same aggregate instance must be preserved; ordering
// across aggregates is unspecified. Retry and backoff on failure belong to
// the implementation, not to the aggregate that emitted the events.
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
}

// Emitter is the observability port. Emit is fire-and-forget: it must never
// panic out and must never block the caller's control flow. Sink failures
// are absorbed inside the adapter.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

var ErrRegistry = errx.NewRegistry("EVENTS")

var (
	CodePublishFailed = ErrRegistry.Register("PUBLISH_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to publish domain events")
	CodeMarshal       = ErrRegistry.Register("MARSHAL", errx.TypeInternal, http.StatusInternalServerError, "Failed to encode event")
)

func ErrPublishFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodePublishFailed, cause)
}

func ErrMarshal(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeMarshal, cause)
}
