package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// MemoryPolicyStore is an in-memory implementation of PolicyStore. Every
// mutation bumps the policy's version so downstream caches can invalidate.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]domain.Policy
	now      func() time.Time
}

// NewMemoryPolicyStore creates a new MemoryPolicyStore.
func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		policies: make(map[string]domain.Policy),
		now:      time.Now,
	}
}

// GetPolicy retrieves a policy by name.
func (s *MemoryPolicyStore) GetPolicy(_ context.Context, name string) (domain.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[name]
	if !ok {
		return domain.Policy{}, fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, name)
	}
	return p, nil
}

// SavePolicy creates or replaces a policy, assigning the next version.
func (s *MemoryPolicyStore) SavePolicy(_ context.Context, p domain.Policy) error {
	if p.Name == "" {
		return domain.Validation("policy.name", fmt.Errorf("must not be empty"))
	}
	if p.Rule.Kind == "" {
		return domain.Validation("policy.rule.kind", fmt.Errorf("must not be empty"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.policies[p.Name]; ok {
		p.Version = prev.Version + 1
	} else if p.Version == 0 {
		p.Version = 1
	}
	p.UpdatedAt = s.now()
	s.policies[p.Name] = p
	return nil
}

// ListPolicies returns all policies ordered by name.
func (s *MemoryPolicyStore) ListPolicies(_ context.Context) ([]domain.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetEnabled toggles a policy's enabled flag. Toggling is the only
// mutation the run-time surface exposes; rule payloads change only through
// SavePolicy.
func (s *MemoryPolicyStore) SetEnabled(_ context.Context, name string, enabled bool) error {
	return s.toggle(name, func(p *domain.Policy) { p.Enabled = enabled })
}

// SetDryRun toggles a policy's dry-run flag.
func (s *MemoryPolicyStore) SetDryRun(_ context.Context, name string, dryRun bool) error {
	return s.toggle(name, func(p *domain.Policy) { p.DryRun = dryRun })
}

func (s *MemoryPolicyStore) toggle(name string, apply func(*domain.Policy)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, name)
	}
	apply(&p)
	p.Version++
	p.UpdatedAt = s.now()
	s.policies[name] = p
	return nil
}

// Snapshot returns a consistent view of all policies keyed by rule kind,
// taken under a single read lock. When several policies share a kind the
// most recently updated one governs.
func (s *MemoryPolicyStore) Snapshot(_ context.Context) (domain.PolicySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.PolicySnapshot{Policies: make(map[domain.RuleKind]domain.Policy, len(s.policies))}
	for _, p := range s.policies {
		if cur, ok := snap.Policies[p.Rule.Kind]; ok && !p.UpdatedAt.After(cur.UpdatedAt) {
			continue
		}
		snap.Policies[p.Rule.Kind] = p
	}
	return snap, nil
}
