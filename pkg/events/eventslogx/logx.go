package eventslogx

import (
	"context"

	"github.com/idfort/idfort/pkg/events"
	"github.com/idfort/idfort/pkg/logx"
)

// Emitter implements events.Emitter on structured logx logging. It is the
// default observability sink: audit records land in the log stream with the
// event metadata as fields. Emit absorbs every failure, including panics
// from exotic field values, so the domain's control flow is never touched.
type Emitter struct{}

func NewEmitter() *Emitter {
	return &Emitter{}
}

func (e *Emitter) Emit(ctx context.Context, ev events.Event) {
	defer func() {
		// Observability must not take the request down with it.
		_ = recover()
	}()

	fields := logx.Fields{
		"observability_event": ev.Kind,
		"aggregate_id":        ev.AggregateID,
		"emitted_at":          ev.EmittedAt,
	}
	for k, v := range ev.Payload {
		fields[k] = v
	}

	logx.WithContext(ctx).WithFields(fields).Info("Audit: " + ev.Kind)
}
