package core

import "sync"

// ModelLimiter caps the number of model calls a run can make. A maximum of
// zero means unlimited.
type ModelLimiter struct {
	mu    sync.Mutex
	max   int
	count int
}

// NewModelLimiter returns a limiter that allows up to max model calls.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Increment records one model call and reports whether the call is still
// within budget.
func (l *ModelLimiter) Increment() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	if l.max <= 0 {
		return true
	}
	return l.count <= l.max
}

// Count returns the number of calls recorded so far.
func (l *ModelLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (l *ModelLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max <= 0 {
		return -1
	}
	rem := l.max - l.count
	if rem < 0 {
		return 0
	}
	return rem
}
