package ledger

import (
	"time"

	"intellikyc/pkg/canonjson"
	dErrors "intellikyc/pkg/domain-errors"
	"intellikyc/pkg/platform/sentinel"
)

// Payload is the application data carried by a transaction. Values must be
// JSON-encodable; KYC flows typically carry credential references, commitment
// hashes, and status fields here, never raw customer PII.
type Payload map[string]any

// Validate rejects payloads that cannot be rendered as canonical JSON.
// Hashing and persistence both depend on that property.
func (p Payload) Validate() error {
	if _, err := canonjson.Marshal(p); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "payload is not JSON-encodable: "+err.Error())
	}
	return nil
}

// Transaction is one immutable ledger entry. TxHash is the transaction's
// identity: a SHA-256 digest over the canonical JSON of the remaining fields,
// computed once at construction. Loaders must re-verify it rather than trust
// the stored value.
type Transaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Payload   Payload `json:"payload"`
	Timestamp float64 `json:"timestamp"`
	Signature string  `json:"signature"`
	TxHash    string  `json:"tx_hash"`
}

// NewTransaction builds a transaction stamped with the current time and an
// empty signature placeholder, then seals it with its content hash.
func NewTransaction(sender, recipient string, payload Payload) (Transaction, error) {
	return NewTransactionAt(sender, recipient, payload, unixNow(), "")
}

// NewTransactionAt is the validating factory used by deserialization paths:
// it rebuilds a transaction from explicit fields and recomputes the hash
// instead of assigning fields directly.
func NewTransactionAt(sender, recipient string, payload Payload, timestamp float64, signature string) (Transaction, error) {
	if sender == "" {
		return Transaction{}, dErrors.New(dErrors.CodeInvalidInput, "sender is required")
	}
	if recipient == "" {
		return Transaction{}, dErrors.New(dErrors.CodeInvalidInput, "recipient is required")
	}
	if payload == nil {
		payload = Payload{}
	}
	if err := payload.Validate(); err != nil {
		return Transaction{}, err
	}
	if timestamp == 0 {
		timestamp = unixNow()
	}
	tx := Transaction{
		Sender:    sender,
		Recipient: recipient,
		Payload:   payload,
		Timestamp: timestamp,
		Signature: signature,
	}
	tx.TxHash = tx.ComputeHash()
	return tx, nil
}

// ComputeHash returns the SHA-256 hex digest of the transaction's canonical
// JSON form, excluding TxHash itself. Payloads are validated to be
// JSON-encodable at construction, so encoding cannot fail here.
func (t Transaction) ComputeHash() string {
	hash, _ := canonjson.SHA256Hex(map[string]any{
		"sender":    t.Sender,
		"recipient": t.Recipient,
		"payload":   t.Payload,
		"timestamp": t.Timestamp,
		"signature": t.Signature,
	})
	return hash
}

// VerifyHash recomputes the content hash and reports a mismatch as
// corruption. Used when reconstructing transactions from storage.
func (t Transaction) VerifyHash() error {
	if t.TxHash != t.ComputeHash() {
		return sentinel.ErrCorrupted
	}
	return nil
}

// ToMap returns the transaction as the key-value form used inside block
// hashes and snapshot files. Every field round-trips, including TxHash.
func (t Transaction) ToMap() map[string]any {
	return map[string]any{
		"sender":    t.Sender,
		"recipient": t.Recipient,
		"payload":   t.Payload,
		"timestamp": t.Timestamp,
		"signature": t.Signature,
		"tx_hash":   t.TxHash,
	}
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
