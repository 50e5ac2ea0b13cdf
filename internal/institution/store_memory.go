package institution

import (
	"context"
	"sync"

	"intellikyc/pkg/platform/sentinel"
)

// InMemoryStore keeps institutions in a mutex-guarded map. Suited for
// single-process deployments; the registry is small and read-heavy.
type InMemoryStore struct {
	mu           sync.RWMutex
	institutions map[string]*Institution
}

// NewInMemoryStore creates an empty institution store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{institutions: make(map[string]*Institution)}
}

// Create stores a new institution, failing on duplicate IDs.
func (s *InMemoryStore) Create(_ context.Context, inst *Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.institutions[inst.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *inst
	s.institutions[inst.ID] = &cp
	return nil
}

// Update replaces an existing institution record.
func (s *InMemoryStore) Update(_ context.Context, inst *Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.institutions[inst.ID]; !exists {
		return sentinel.ErrNotFound
	}
	cp := *inst
	s.institutions[inst.ID] = &cp
	return nil
}

// FindByID returns a copy of the stored institution.
func (s *InMemoryStore) FindByID(_ context.Context, institutionID string) (*Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, exists := s.institutions[institutionID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

// List returns copies of all registered institutions.
func (s *InMemoryStore) List(_ context.Context) ([]*Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Institution, 0, len(s.institutions))
	for _, inst := range s.institutions {
		cp := *inst
		out = append(out, &cp)
	}
	return out, nil
}
