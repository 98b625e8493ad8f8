package service

import "sync"

// EscalationTracker counts consecutive denied cycles for a single identity
// and raises the assisted-resolution signal at the threshold. All denial
// reasons count toward the same streak; an admission resets it. The signal
// affects presentation only — the audit trail keeps the original verdict
// reason.
//
// The controller loop writes; the diagnostic HTTP surface reads
// concurrently, hence the lock.
type EscalationTracker struct {
	mu        sync.Mutex
	threshold int
	identity  string
	streak    int
}

func NewEscalationTracker(threshold int) *EscalationTracker {
	if threshold <= 0 {
		threshold = 3
	}
	return &EscalationTracker{threshold: threshold}
}

// Observe updates the streak for identity and reports whether this cycle's
// display should show the assisted-resolution message. The tracker follows
// whichever identity was processed last; a different identity always
// starts over.
func (t *EscalationTracker) Observe(identity string, denied bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if identity != t.identity {
		if !denied {
			t.identity = ""
			t.streak = 0
			return false
		}
		t.identity = identity
		t.streak = 1
	} else if denied {
		t.streak++
	} else {
		t.streak = 0
	}
	return t.streak >= t.threshold
}

// Reset clears the slot. Used by the unconditional-bypass path, which
// admits without running a verdict.
func (t *EscalationTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.identity = ""
	t.streak = 0
}

// Streak exposes the current count for the diagnostic surface.
func (t *EscalationTracker) Streak() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streak
}
