package events

import (
	"context"
	"sync"
)

// MemoryPublisher buffers events in emission order. Used in tests and as a
// fallback when no broker is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, evs []Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

// Events returns a copy of everything published so far, in arrival order.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// ByAggregate returns the published events for one aggregate, in order.
func (p *MemoryPublisher) ByAggregate(aggregateID string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.AggregateID == aggregateID {
			out = append(out, ev)
		}
	}
	return out
}

// NopEmitter discards every observability event.
type NopEmitter struct{}

func NewNopEmitter() NopEmitter { return NopEmitter{} }

func (NopEmitter) Emit(context.Context, Event) {}

// MemoryEmitter records emitted observability events for assertions.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEmitter() *MemoryEmitter { return &MemoryEmitter{} }

func (e *MemoryEmitter) Emit(_ context.Context, ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *MemoryEmitter) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}
