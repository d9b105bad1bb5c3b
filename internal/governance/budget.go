// Package governance coordinates runtime safety controls for the mediation
// pipeline. Its budget tracker enforces per-principal daily token spend so
// a runaway agent cannot exhaust upstream capacity.
package governance

import (
	"sync"
	"time"
)

// BudgetTracker accounts daily token usage per principal. Usage windows
// roll over at UTC midnight.
type BudgetTracker struct {
	mu    sync.Mutex
	usage map[string]*dayUsage
	now   func() time.Time
}

type dayUsage struct {
	day    time.Time
	tokens int64
}

// NewBudgetTracker creates an empty tracker.
func NewBudgetTracker() *BudgetTracker {
	return &BudgetTracker{
		usage: make(map[string]*dayUsage),
		now:   time.Now,
	}
}

// Allow reports whether the principal has budget remaining today. A
// non-positive limit means unlimited.
func (b *BudgetTracker) Allow(principalID string, limit int64) bool {
	if limit <= 0 {
		return true
	}
	return b.Remaining(principalID, limit) > 0
}

// Remaining returns the tokens left in today's window, never negative.
func (b *BudgetTracker) Remaining(principalID string, limit int64) int64 {
	if limit <= 0 {
		return limit
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u := b.current(principalID)
	if u.tokens >= limit {
		return 0
	}
	return limit - u.tokens
}

// Consume records tokens spent by the principal in today's window.
func (b *BudgetTracker) Consume(principalID string, tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.current(principalID).tokens += tokens
}

// Used returns the tokens consumed in today's window.
func (b *BudgetTracker) Used(principalID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.current(principalID).tokens
}

// current returns today's usage record for the principal, resetting any
// record from a previous day. Callers hold b.mu.
func (b *BudgetTracker) current(principalID string) *dayUsage {
	today := b.now().UTC().Truncate(24 * time.Hour)
	u, ok := b.usage[principalID]
	if !ok || !u.day.Equal(today) {
		u = &dayUsage{day: today}
		b.usage[principalID] = u
	}
	return u
}
