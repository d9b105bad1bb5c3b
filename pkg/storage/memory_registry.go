package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// MemoryRegistry is an in-memory implementation of PrincipalRegistry.
type MemoryRegistry struct {
	mu         sync.RWMutex
	principals map[string]domain.Principal
}

// NewMemoryRegistry creates a new MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		principals: make(map[string]domain.Principal),
	}
}

// GetPrincipal retrieves a principal by id. The returned value carries an
// independent allowlist slice.
func (r *MemoryRegistry) GetPrincipal(_ context.Context, id string) (domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principals[id]
	if !ok {
		return domain.Principal{}, fmt.Errorf("%w: %s", domain.ErrPrincipalNotFound, id)
	}
	return p.Clone(), nil
}

// SavePrincipal creates or replaces a principal.
func (r *MemoryRegistry) SavePrincipal(_ context.Context, p domain.Principal) error {
	if p.ID == "" {
		return domain.Validation("principal.id", fmt.Errorf("must not be empty"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.principals[p.ID] = p.Clone()
	return nil
}

// ListPrincipals returns all registered principals ordered by id.
func (r *MemoryRegistry) ListPrincipals(_ context.Context) ([]domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Principal, 0, len(r.principals))
	for _, p := range r.principals {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
