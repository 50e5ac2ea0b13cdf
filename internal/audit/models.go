// Package audit records key ledger and credential actions in an append-only
// trail. Domain logic emits events into a channel; a background worker fans
// them out to the configured sinks.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit trail.
const (
	ActionTransactionSubmitted = "transaction.submitted"
	ActionBlockMined           = "block.mined"
	ActionCredentialIssued     = "credential.issued"
	ActionCredentialVerified   = "credential.verified"
	ActionCredentialShared     = "credential.shared"
	ActionChainSaved           = "chain.saved"
	ActionChainLoaded          = "chain.loaded"
	ActionInstitutionOnboarded = "institution.onboarded"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          uuid.UUID         `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Institution string            `json:"institution"`
	Action      string            `json:"action"`
	Subject     string            `json:"subject"`
	Decision    string            `json:"decision,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}
