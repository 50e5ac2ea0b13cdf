package proof

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	dErrors "intellikyc/pkg/domain-errors"
)

// EncodePublicKeyPEM renders an RSA public key as PEM in
// SubjectPublicKeyInfo form, the format institutions exchange out-of-band.
func EncodePublicKeyPEM(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return string(block), nil
}

// ParsePublicKeyPEM parses a PEM SubjectPublicKeyInfo document into an RSA
// public key, rejecting other key types.
func ParsePublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no PEM block found in public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "parse public key: "+err.Error())
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "public key is not RSA")
	}
	return key, nil
}
