package mockserver

import "time"

// Clock is the server's pluggable time source (spec §4.6.1: "time source is pluggable; tests
// inject a fake clock to make candle generation and rate-limiting deterministic").
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FixedClock is a Clock that always returns the same instant, for deterministic tests.
type FixedClock struct {
	At time.Time
}

// Now returns c.At, ignoring wall-clock time.
func (c FixedClock) Now() time.Time { return c.At }
