package proof

import (
	"sync"

	dErrors "intellikyc/pkg/domain-errors"
)

// Issuer owns the signing key pairs for institutions that issue credentials
// through this node. Provisioning an institution creates a fresh RSA key pair
// and registers its public half with the manager, so proofs issued here
// verify under the institution's own identity.
type Issuer struct {
	mu         sync.RWMutex
	generators map[string]*Generator
	keyBits    int
	manager    *Manager
}

// NewIssuer creates an issuer producing keys of the given size.
func NewIssuer(keyBits int, manager *Manager) *Issuer {
	if keyBits <= 0 {
		keyBits = DefaultKeyBits
	}
	return &Issuer{
		generators: make(map[string]*Generator),
		keyBits:    keyBits,
		manager:    manager,
	}
}

// Provision creates a signing key pair for an institution and registers the
// public key for verification. Returns the public key PEM. Provisioning the
// same institution twice keeps the existing key.
func (i *Issuer) Provision(institutionID string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if g, ok := i.generators[institutionID]; ok {
		return g.PublicKeyPEM()
	}

	g, err := NewGenerator(i.keyBits)
	if err != nil {
		return "", err
	}
	pemKey, err := g.PublicKeyPEM()
	if err != nil {
		return "", err
	}
	if err := i.manager.RegisterInstitution(institutionID, pemKey); err != nil {
		return "", err
	}
	i.generators[institutionID] = g
	return pemKey, nil
}

// Generator returns the signing generator for an institution provisioned on
// this node. Institutions registered with an external key have no generator
// here and cannot issue through this node.
func (i *Issuer) Generator(institutionID string) (*Generator, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	g, ok := i.generators[institutionID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "no issuing key provisioned for institution "+institutionID)
	}
	return g, nil
}
