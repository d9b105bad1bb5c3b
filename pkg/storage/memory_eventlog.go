package storage

import (
	"context"
	"sync"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// MemoryEventLog is an in-memory implementation of EventLog. Records are
// kept in append order.
type MemoryEventLog struct {
	mu        sync.RWMutex
	events    []domain.Event
	decisions []domain.Decision
}

// NewMemoryEventLog creates a new MemoryEventLog.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

// Append records an audit event.
func (l *MemoryEventLog) Append(_ context.Context, e domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	return nil
}

// AppendDecision records a pipeline decision.
func (l *MemoryEventLog) AppendDecision(_ context.Context, d domain.Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.decisions = append(l.decisions, d)
	return nil
}

// EventsFor returns the events recorded for a principal, oldest first.
func (l *MemoryEventLog) EventsFor(_ context.Context, principalID string) ([]domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Event
	for _, e := range l.events {
		if e.PrincipalID == principalID {
			out = append(out, e)
		}
	}
	return out, nil
}

// DecisionsFor returns the decisions recorded for a principal, oldest first.
func (l *MemoryEventLog) DecisionsFor(_ context.Context, principalID string) ([]domain.Decision, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Decision
	for _, d := range l.decisions {
		if d.PrincipalID == principalID {
			out = append(out, d)
		}
	}
	return out, nil
}
