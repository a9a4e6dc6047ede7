// Package backoff implements the shrinking-ceiling retry sleep used by the
// engine wrapper when the embedded SQL engine reports a transient BUSY,
// LOCKED, or PROTOCOL error (spec §4.F).
//
// The idiom — a package-level helper type wrapping a source of randomness
// — follows driver/internal/rand/rand.go, repurposed from generating
// alphanumeric identifiers to jittering a sleep duration.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Schedule gives the sleep ceiling for a given 0-based attempt count: a
// 0.25s ceiling for the first ~10 attempts, then 0.1s, then 0.01s, matching
// the C original's "throughput optimization" (tight lock contention sleeps
// longer; sustained contention yields).
func Schedule(attempt int) time.Duration {
	switch {
	case attempt < 10:
		return 250 * time.Millisecond
	case attempt < 100:
		return 100 * time.Millisecond
	default:
		return 10 * time.Millisecond
	}
}

// Sleep blocks for a uniformly random duration within the ceiling for
// attempt. The source of randomness is deliberately unspecified by the
// spec beyond "uniform" — math/rand/v2's package-level generator is
// sufficient and needs no seeding.
func Sleep(attempt int) {
	ceiling := Schedule(attempt)
	if ceiling <= 0 {
		return
	}
	time.Sleep(time.Duration(rand.Int64N(int64(ceiling))))
}
