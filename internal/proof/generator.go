package proof

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"intellikyc/pkg/canonjson"
	dErrors "intellikyc/pkg/domain-errors"
)

var tracer trace.Tracer = otel.Tracer("intellikyc/proof")

// DefaultKeyBits is the RSA modulus size used when none is configured.
const DefaultKeyBits = 2048

var pssOpts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// Generator issues and signs KYC credential proofs with an RSA-PSS/SHA-256
// key pair owned by one institution. Key generation and signing are CPU
// bound; construct Generators off any latency-sensitive loop.
type Generator struct {
	privateKey *rsa.PrivateKey
	clock      func() time.Time
}

// NewGenerator creates a generator with a fresh RSA key pair. bits <= 0
// selects DefaultKeyBits.
func NewGenerator(bits int) (*Generator, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &Generator{privateKey: key, clock: time.Now}, nil
}

// PublicKey returns the generator's verification key.
func (g *Generator) PublicKey() *rsa.PublicKey {
	return &g.privateKey.PublicKey
}

// PublicKeyPEM exports the verification key for out-of-band registration
// with other institutions.
func (g *Generator) PublicKeyPEM() (string, error) {
	return EncodePublicKeyPEM(g.PublicKey())
}

// GenerateKYCProof builds and signs a credential proof. customerData is
// folded into the commitment hash together with the verification metadata and
// then discarded: no key or value of it appears in the returned proof.
func (g *Generator) GenerateKYCProof(ctx context.Context, customerData map[string]any, verificationLevel, issuingInstitution string) (Proof, error) {
	_, span := tracer.Start(ctx, "proof.Generate",
		trace.WithAttributes(attribute.String("proof.level", verificationLevel)))
	defer span.End()

	if !ValidLevel(verificationLevel) {
		return Proof{}, dErrors.New(dErrors.CodeInvalidInput, "unknown verification level: "+verificationLevel)
	}
	if issuingInstitution == "" {
		return Proof{}, dErrors.New(dErrors.CodeInvalidInput, "issuing institution is required")
	}

	now := unixSeconds(g.clock())
	commitmentHash, err := canonjson.SHA256Hex(map[string]any{
		"customer_pii": customerData,
		"verification_details": map[string]any{
			"level":     verificationLevel,
			"issuer":    issuingInstitution,
			"timestamp": now,
		},
	})
	if err != nil {
		return Proof{}, dErrors.New(dErrors.CodeInvalidInput, "customer data is not JSON-encodable: "+err.Error())
	}

	challenge, err := generateChallenge()
	if err != nil {
		return Proof{}, err
	}
	proofID, err := generateProofID(g.clock())
	if err != nil {
		return Proof{}, err
	}

	p := Proof{
		ProofType:      TypeKYCVerification,
		CommitmentHash: commitmentHash,
		Challenge:      challenge,
		PublicClaims: PublicClaims{
			VerificationLevel:     verificationLevel,
			IssuingInstitution:    issuingInstitution,
			VerificationCompleted: true,
			MeetsCompliance:       true,
			Timestamp:             now,
		},
		ProofID:     proofID,
		GeneratedAt: now,
	}

	signature, err := g.sign(p.signingPayload())
	if err != nil {
		return Proof{}, err
	}
	p.ProofSignature = signature
	return p, nil
}

// VerifyKYCProof verifies a proof against the generator's own public key.
func (g *Generator) VerifyKYCProof(ctx context.Context, p Proof) VerificationResult {
	return VerifyWithKey(ctx, p, g.PublicKey(), g.clock())
}

// VerifyWithKey runs the composite verification: RSA-PSS signature over the
// proof minus its signature, structural completeness, and the 24h expiry
// window. Cryptographic and structural failures are reported as flags, never
// as errors, and verification never needs the hidden customer data.
func VerifyWithKey(ctx context.Context, p Proof, key *rsa.PublicKey, now time.Time) VerificationResult {
	_, span := tracer.Start(ctx, "proof.Verify")
	defer span.End()

	result := VerificationResult{
		StructureValid:     validStructure(p),
		PublicClaims:       p.PublicClaims,
		VerificationLevel:  p.PublicClaims.VerificationLevel,
		IssuingInstitution: p.PublicClaims.IssuingInstitution,
		PrivacyPreserved:   true,
		VerifiedAt:         unixSeconds(now),
	}

	result.SignatureVerified = signatureValid(p.signingPayload(), p.ProofSignature, key)

	result.ProofAgeSeconds = unixSeconds(now) - p.GeneratedAt
	result.NotExpired = result.ProofAgeSeconds < Lifetime.Seconds()

	result.Valid = result.SignatureVerified && result.StructureValid && result.NotExpired
	if !result.Valid {
		if !result.SignatureVerified {
			result.FailureReasons = append(result.FailureReasons, "invalid cryptographic signature")
		}
		if !result.StructureValid {
			result.FailureReasons = append(result.FailureReasons, "invalid proof structure")
		}
		if !result.NotExpired {
			result.FailureReasons = append(result.FailureReasons, "proof expired")
		}
	}
	span.SetAttributes(attribute.Bool("proof.valid", result.Valid))
	return result
}

// validStructure checks that every required field and claim is present. The
// challenge must exist even though verification does not consult it.
func validStructure(p Proof) bool {
	if p.ProofType == "" || p.CommitmentHash == "" || p.Challenge == "" || p.ProofID == "" || p.GeneratedAt == 0 {
		return false
	}
	claims := p.PublicClaims
	return claims.VerificationLevel != "" && claims.IssuingInstitution != "" && claims.VerificationCompleted
}

func signatureValid(payload map[string]any, signatureHex string, key *rsa.PublicKey) bool {
	if signatureHex == "" || key == nil {
		return false
	}
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	data, err := canonjson.Marshal(payload)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, pssOpts) == nil
}

func (g *Generator) sign(payload map[string]any) (string, error) {
	data, err := canonjson.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode signing payload: %w", err)
	}
	digest := sha256.Sum256(data)
	signature, err := rsa.SignPSS(rand.Reader, g.privateKey, crypto.SHA256, digest[:], pssOpts)
	if err != nil {
		return "", fmt.Errorf("sign proof: %w", err)
	}
	return hex.EncodeToString(signature), nil
}

// generateChallenge produces the reserved 256-bit random challenge value.
func generateChallenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// generateProofID derives a 16-hex-char identifier from the current time and
// 16 random bytes.
func generateProofID(now time.Time) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate proof id: %w", err)
	}
	seed := strconv.FormatInt(now.Unix(), 10) + hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16], nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
