// Package assert implements assertion helpers for invariants the spec
// calls "a bug" rather than a recoverable error — e.g. a statement left on
// the registry after its owning database's shutdown sweep should have
// unlinked it (spec §4.E).
//
// Adapted from driver/internal/assert/assert.go.
package assert

import "fmt"

// True panics in case b is false.
func True(s string, b bool) {
	if !b {
		panic(fmt.Sprintf("%s: %v - expected %v", s, b, true))
	}
}

// Equal panics in case a does not equal b.
func Equal[T comparable](s string, a, b T) {
	if a != b {
		panic(fmt.Sprintf("%s: %v %v", s, a, b))
	}
}

// Panicf panics with a formatted message.
func Panicf(format string, a ...any) {
	panic(fmt.Sprintf(format, a...))
}

// EmptyRegistry panics unless both the global and per-database statement
// lists are empty, the invariant the server shutdown sweep (spec §4.E)
// must restore before it closes the engine database.
func EmptyRegistry(globalLen, dbLen int) {
	if globalLen != 0 || dbLen != 0 {
		Panicf("registry: statement left over after shutdown sweep: global=%d db=%d", globalLen, dbLen)
	}
}
