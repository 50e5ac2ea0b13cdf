package proof

import (
	"context"
	"fmt"
)

// GenerateCrossInstitutionProof derives a sharing proof from an existing
// credential. The original proof is fully re-verified first; sharing is
// denied, with an explicit reason, when the original is invalid or when its
// verification level ranks below the requested minimum. Approval produces an
// independent, signed SharingProof containing only the non-sensitive shared
// claims; the original is never mutated.
func (g *Generator) GenerateCrossInstitutionProof(ctx context.Context, original Proof, requestingInstitution, requiredVerificationLevel string) (SharingResult, error) {
	_, span := tracer.Start(ctx, "proof.Share")
	defer span.End()

	if requiredVerificationLevel == "" {
		requiredVerificationLevel = LevelCDD
	}
	now := unixSeconds(g.clock())

	verification := g.VerifyKYCProof(ctx, original)
	if !verification.Valid {
		return SharingResult{
			Approved:  false,
			Reason:    "original proof is invalid",
			Timestamp: now,
		}, nil
	}

	originalLevel := verification.VerificationLevel
	if LevelRank(originalLevel) < LevelRank(requiredVerificationLevel) {
		return SharingResult{
			Approved: false,
			Reason: fmt.Sprintf("verification level %s insufficient for requirement %s",
				originalLevel, requiredVerificationLevel),
			Timestamp: now,
		}, nil
	}

	sharing := SharingProof{
		ProofType:                  TypeCrossInstitutionSharing,
		OriginalProofID:            original.ProofID,
		SharingApproved:            true,
		RequestingInstitution:      requestingInstitution,
		VerificationLevelConfirmed: originalLevel,
		OriginalIssuer:             verification.IssuingInstitution,
		SharedClaims: SharedClaims{
			KYCCompleted:       true,
			VerificationLevel:  originalLevel,
			ComplianceStatus:   "VERIFIED",
			IssuingInstitution: verification.IssuingInstitution,
		},
		SharingTimestamp: now,
	}

	signature, err := g.sign(sharing.signingPayload())
	if err != nil {
		return SharingResult{}, err
	}
	sharing.SharingSignature = signature

	return SharingResult{
		Approved:  true,
		Proof:     &sharing,
		Timestamp: now,
	}, nil
}

// VerifySharingProof checks a sharing proof's signature against the issuing
// generator's public key.
func (g *Generator) VerifySharingProof(p SharingProof) bool {
	return signatureValid(p.signingPayload(), p.SharingSignature, g.PublicKey())
}
