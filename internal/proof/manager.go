package proof

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"intellikyc/pkg/platform/sentinel"
)

// Store persists proofs by proof_id. Implementations report a missing proof
// with sentinel.ErrNotFound.
type Store interface {
	Save(ctx context.Context, p Proof) error
	FindByID(ctx context.Context, proofID string) (Proof, error)
}

// Manager binds institutions to their registered public keys and proofs to a
// store. Its verification path enforces trust binding: a stored proof only
// verifies against the key of the institution claimed as its issuer, so one
// institution cannot pass its proofs off under another's registration.
type Manager struct {
	mu    sync.RWMutex
	keys  map[string]*rsa.PublicKey
	store Store
	clock func() time.Time
}

// NewManager creates a manager over the given proof store.
func NewManager(store Store) *Manager {
	return &Manager{
		keys:  make(map[string]*rsa.PublicKey),
		store: store,
		clock: time.Now,
	}
}

// RegisterInstitution records an institution's public verification key from
// its PEM form. Registration happens out-of-band before any stored-proof
// verification for that institution.
func (m *Manager) RegisterInstitution(institutionID, publicKeyPEM string) error {
	key, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[institutionID] = key
	return nil
}

// InstitutionKey returns the registered key for an institution.
func (m *Manager) InstitutionKey(institutionID string) (*rsa.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[institutionID]
	return key, ok
}

// StoreProof persists a proof under its proof_id for later verification.
func (m *Manager) StoreProof(ctx context.Context, p Proof) error {
	return m.store.Save(ctx, p)
}

// GetProof fetches a stored proof by id.
func (m *Manager) GetProof(ctx context.Context, proofID string) (Proof, error) {
	return m.store.FindByID(ctx, proofID)
}

// VerifyStoredProof looks up a stored proof and verifies it using the claimed
// issuing institution's registered key. Lookup misses are reported as invalid
// composite results, matching how all other verification failures surface.
func (m *Manager) VerifyStoredProof(ctx context.Context, proofID, institutionID string) (VerificationResult, error) {
	now := unixSeconds(m.clock())

	stored, err := m.store.FindByID(ctx, proofID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return VerificationResult{
			Valid:          false,
			FailureReasons: []string{"proof not found"},
			VerifiedAt:     now,
		}, nil
	}
	if err != nil {
		return VerificationResult{}, err
	}

	key, ok := m.InstitutionKey(institutionID)
	if !ok {
		return VerificationResult{
			Valid:          false,
			FailureReasons: []string{"institution not registered"},
			VerifiedAt:     now,
		}, nil
	}

	return VerifyWithKey(ctx, stored, key, m.clock()), nil
}
