// Package store provides proof persistence backends: an in-memory map for
// single-process deployments and tests, Redis keyed with the proof lifetime
// as TTL, and PostgreSQL for durable archives.
package store

import (
	"context"
	"sync"

	"intellikyc/internal/proof"
	"intellikyc/pkg/platform/sentinel"
)

// MemoryStore keeps proofs in a mutex-guarded map.
type MemoryStore struct {
	mu     sync.RWMutex
	proofs map[string]proof.Proof
}

// NewMemory creates an empty in-memory proof store.
func NewMemory() *MemoryStore {
	return &MemoryStore{proofs: make(map[string]proof.Proof)}
}

func (s *MemoryStore) Save(_ context.Context, p proof.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proofs[p.ProofID] = p
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, proofID string) (proof.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proofs[proofID]
	if !ok {
		return proof.Proof{}, sentinel.ErrNotFound
	}
	return p, nil
}
