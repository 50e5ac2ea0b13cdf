// Package institution manages the registry of financial institutions allowed
// to issue and verify KYC credentials. Onboarding records an institution's
// RSA public key for proof verification and issues it an API secret for
// authenticating to the HTTP surface.
package institution

import (
	"time"

	dErrors "intellikyc/pkg/domain-errors"
)

// Status tracks whether an institution may use the API.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Institution is a registered KYC participant.
//
// Invariants:
//   - ID is non-empty and at most 64 characters
//   - PublicKeyPEM holds a parseable RSA public key
//   - SecretHash is a bcrypt hash, never the plaintext secret
type Institution struct {
	ID           string    `json:"institution_id"`
	Name         string    `json:"name"`
	PublicKeyPEM string    `json:"public_key_pem"`
	SecretHash   string    `json:"-"`
	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

// NewInstitution validates identity fields and builds an active institution.
// Key and secret material are attached by the service during onboarding.
func NewInstitution(institutionID, name string, now time.Time) (*Institution, error) {
	if institutionID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "institution id cannot be empty")
	}
	if len(institutionID) > 64 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "institution id must be 64 characters or less")
	}
	if name == "" {
		name = institutionID
	}
	return &Institution{
		ID:           institutionID,
		Name:         name,
		Status:       StatusActive,
		RegisteredAt: now,
	}, nil
}

// IsActive reports whether the institution may authenticate and issue proofs.
func (i *Institution) IsActive() bool {
	return i.Status == StatusActive
}

// Suspend blocks the institution from the API. Suspending twice is an error.
func (i *Institution) Suspend() error {
	if i.Status == StatusSuspended {
		return dErrors.New(dErrors.CodeConflict, "institution is already suspended")
	}
	i.Status = StatusSuspended
	return nil
}

// Reactivate restores API access for a suspended institution.
func (i *Institution) Reactivate() error {
	if i.Status == StatusActive {
		return dErrors.New(dErrors.CodeConflict, "institution is already active")
	}
	i.Status = StatusActive
	return nil
}
