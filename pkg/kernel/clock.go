package kernel

import "time"

// Clock supplies the current time to the domain. Aggregates never read the
// wall clock directly; expiry decisions compare against an injected reading
// so they stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns a constant instant. Useful for tests and replay.
type FixedClock struct {
	Instant time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{Instant: t} }

func (c *FixedClock) Now() time.Time { return c.Instant }

// Advance moves the fixed clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.Instant = c.Instant.Add(d) }
