package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the package-level time source behind credibility recency decay.
// Production uses the real clock; tests freeze time via SetClock.
var clock = clockwork.NewRealClock()

// Now reads the package clock. Adapters use it for ingest and upsert
// timestamps so frozen-clock tests see consistent times everywhere.
func Now() time.Time {
	return clock.Now()
}

// SetClock swaps the domain time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
