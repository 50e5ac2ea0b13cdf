// Package proof implements the commitment-based KYC credential scheme: an
// institution asserts "KYC completed at level X" to another party without
// revealing the underlying customer data. Proofs carry a commitment hash over
// the hidden inputs plus signed public claims; they are not zero-knowledge in
// the cryptographic sense, they achieve data minimization.
package proof

import "time"

// Proof type discriminators.
const (
	TypeKYCVerification         = "kyc_verification_proof"
	TypeCrossInstitutionSharing = "cross_institution_sharing"
)

// Lifetime is how long a proof verifies after generation. Expiry is checked
// lazily at verification time; nothing actively purges expired proofs.
const Lifetime = 24 * time.Hour

// KYC verification levels, ordered CIP < CDD < EDD.
const (
	LevelCIP = "CIP"
	LevelCDD = "CDD"
	LevelEDD = "EDD"
)

var levelRank = map[string]int{
	LevelCIP: 1,
	LevelCDD: 2,
	LevelEDD: 3,
}

// LevelRank returns the ordinal for a verification level, 0 for unknown
// levels so they never satisfy any requirement.
func LevelRank(level string) int {
	return levelRank[level]
}

// ValidLevel reports whether level is a recognized KYC tier.
func ValidLevel(level string) bool {
	_, ok := levelRank[level]
	return ok
}

// PublicClaims are the assertions safe to reveal to any verifier.
type PublicClaims struct {
	VerificationLevel     string  `json:"verification_level"`
	IssuingInstitution    string  `json:"issuing_institution"`
	VerificationCompleted bool    `json:"verification_completed"`
	MeetsCompliance       bool    `json:"meets_compliance"`
	Timestamp             float64 `json:"timestamp"`
}

func (c PublicClaims) toMap() map[string]any {
	return map[string]any{
		"verification_level":     c.VerificationLevel,
		"issuing_institution":    c.IssuingInstitution,
		"verification_completed": c.VerificationCompleted,
		"meets_compliance":       c.MeetsCompliance,
		"timestamp":              c.Timestamp,
	}
}

// Proof is a signed KYC credential assertion. It never contains raw customer
// PII; only the commitment hash binds to the hidden inputs. Challenge is
// populated with 256 random bits but is not consulted during verification; it
// is reserved for a future challenge-response protocol.
type Proof struct {
	ProofType      string       `json:"proof_type"`
	CommitmentHash string       `json:"commitment_hash"`
	Challenge      string       `json:"challenge"`
	PublicClaims   PublicClaims `json:"public_claims"`
	ProofID        string       `json:"proof_id"`
	ProofSignature string       `json:"proof_signature"`
	GeneratedAt    float64      `json:"generated_at"`
}

// signingPayload is the canonical key-value view of the proof minus its
// signature; both signing and verification hash exactly this form.
func (p Proof) signingPayload() map[string]any {
	return map[string]any{
		"proof_type":      p.ProofType,
		"commitment_hash": p.CommitmentHash,
		"challenge":       p.Challenge,
		"public_claims":   p.PublicClaims.toMap(),
		"proof_id":        p.ProofID,
		"generated_at":    p.GeneratedAt,
	}
}

// SharedClaims is the non-sensitive subset forwarded to a requesting
// institution.
type SharedClaims struct {
	KYCCompleted       bool   `json:"kyc_completed"`
	VerificationLevel  string `json:"verification_level"`
	ComplianceStatus   string `json:"compliance_status"`
	IssuingInstitution string `json:"issuing_institution"`
}

func (c SharedClaims) toMap() map[string]any {
	return map[string]any{
		"kyc_completed":       c.KYCCompleted,
		"verification_level":  c.VerificationLevel,
		"compliance_status":   c.ComplianceStatus,
		"issuing_institution": c.IssuingInstitution,
	}
}

// SharingProof is a derived assertion letting a second institution accept an
// existing credential's conclusion. It is independent of the original proof
// and never carries the commitment's hidden inputs.
type SharingProof struct {
	ProofType                  string       `json:"proof_type"`
	OriginalProofID            string       `json:"original_proof_id"`
	SharingApproved            bool         `json:"sharing_approved"`
	RequestingInstitution      string       `json:"requesting_institution"`
	VerificationLevelConfirmed string       `json:"verification_level_confirmed"`
	OriginalIssuer             string       `json:"original_issuer"`
	SharedClaims               SharedClaims `json:"shared_claims"`
	SharingSignature           string       `json:"sharing_signature"`
	SharingTimestamp           float64      `json:"sharing_timestamp"`
}

func (p SharingProof) signingPayload() map[string]any {
	return map[string]any{
		"proof_type":                   p.ProofType,
		"original_proof_id":            p.OriginalProofID,
		"sharing_approved":             p.SharingApproved,
		"requesting_institution":       p.RequestingInstitution,
		"verification_level_confirmed": p.VerificationLevelConfirmed,
		"original_issuer":              p.OriginalIssuer,
		"shared_claims":                p.SharedClaims.toMap(),
		"sharing_timestamp":            p.SharingTimestamp,
	}
}

// VerificationResult is the composite outcome of verifying a proof. Failures
// of individual checks are downgraded to flags and reasons; verification
// itself never errors on bad cryptography or structure.
type VerificationResult struct {
	Valid              bool         `json:"valid"`
	SignatureVerified  bool         `json:"signature_verified"`
	StructureValid     bool         `json:"structure_valid"`
	NotExpired         bool         `json:"not_expired"`
	ProofAgeSeconds    float64      `json:"proof_age_seconds"`
	PublicClaims       PublicClaims `json:"public_claims"`
	VerificationLevel  string       `json:"verification_level"`
	IssuingInstitution string       `json:"issuing_institution"`
	PrivacyPreserved   bool         `json:"privacy_preserved"`
	FailureReasons     []string     `json:"failure_reasons,omitempty"`
	VerifiedAt         float64      `json:"verified_at"`
}

// SharingResult reports whether a cross-institution share was approved. A
// denial carries the reason; an approval carries the signed sharing proof.
type SharingResult struct {
	Approved  bool          `json:"sharing_approved"`
	Reason    string        `json:"reason,omitempty"`
	Proof     *SharingProof `json:"sharing_proof,omitempty"`
	Timestamp float64       `json:"timestamp"`
}
