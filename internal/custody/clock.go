package custody

import "time"

// Clock supplies wall-clock time to the ledger.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Timestamp normalizes t to the precision the catalog persists: UTC with
// microsecond resolution and no monotonic reading. Every timestamp that enters
// a record passes through here so persisted values round-trip exactly.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
