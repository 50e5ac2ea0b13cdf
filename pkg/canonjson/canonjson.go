// Package canonjson renders values as canonical JSON: compact, with object
// keys in lexicographic order. Every content hash and signature in the system
// is computed over this form so that digests are reproducible regardless of
// how the value was built or which process serialized it.
package canonjson

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Marshal returns the canonical JSON encoding of v. The value is normalized
// through a JSON round-trip first, so structs, maps, and values freshly
// decoded from the wire all produce identical bytes for identical content.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return nil, err
	}
	return json.Marshal(norm)
}

// SHA256Hex returns the hex-encoded SHA-256 digest of the canonical JSON
// encoding of v.
func SHA256Hex(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
