// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import "sync"

// Budget tracks inference calls against a process-wide ceiling for one
// run. A zero ceiling means unlimited. Exceeding the ceiling is not an
// error condition by itself; callers use it to pick a degradation path
// (skip stage-2 review, skip spotlight narrative).
type Budget struct {
	mu   sync.Mutex
	used int
	max  int
}

// NewBudget returns a Budget with the given call ceiling.
func NewBudget(maxCalls int) *Budget {
	return &Budget{max: maxCalls}
}

// TryAcquire reserves one call. It returns false when the ceiling is
// already reached; the reservation is not made in that case.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && b.used >= b.max {
		return false
	}
	b.used++
	return true
}

// Used returns the number of calls made so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Exhausted reports whether the ceiling has been reached.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.max > 0 && b.used >= b.max
}
