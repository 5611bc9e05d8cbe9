// Package testutils provides deterministic clocks, ids, fixtures and an in-process fake
// backend for adsdash tests.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// Thread-safe counter for deterministic ID generation
	idCounter uint64
	idMutex   sync.Mutex
)

// BaseTime is the first instant of every Clock.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock returns a time source starting at BaseTime that advances by step on every call.
// A zero step freezes it.
func Clock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := BaseTime.Add(-step)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}

// FixedClock returns a time source that always returns t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// DeterministicUUID returns UUIDs like 00000001-0000-4000-8000-000000000001 in sequence.
func DeterministicUUID() uuid.UUID {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++
	return uuid.MustParse(fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter))
}

// ResetTestCounters resets the deterministic counters.
func ResetTestCounters() {
	idMutex.Lock()
	defer idMutex.Unlock()
	idCounter = 0
}
