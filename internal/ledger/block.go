package ledger

import (
	"intellikyc/pkg/canonjson"
)

// GenesisPreviousHash is the virtual parent hash of the genesis block.
const GenesisPreviousHash = "0"

// Block is one sealed entry in the hash-linked chain. Hash is a SHA-256
// digest over the canonical JSON of the header fields plus the serialized
// transactions; for mined blocks it additionally carries the proof-of-work
// zero prefix.
type Block struct {
	Index        int           `json:"index"`
	Transactions []Transaction `json:"transactions"`
	Timestamp    float64       `json:"timestamp"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// NewBlock assembles an unsealed block. The Hash field reflects the current
// nonce; proof-of-work re-seals it.
func NewBlock(index int, transactions []Transaction, timestamp float64, previousHash string) Block {
	if transactions == nil {
		transactions = []Transaction{}
	}
	if timestamp == 0 {
		timestamp = unixNow()
	}
	b := Block{
		Index:        index,
		Transactions: transactions,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
	}
	b.Hash = b.ComputeHash()
	return b
}

// ComputeHash hashes {index, transactions, timestamp, previous_hash, nonce}
// in canonical JSON form. It is pure: identical field values always produce
// the identical digest. Transaction payloads are validated at construction,
// so encoding cannot fail here.
func (b Block) ComputeHash() string {
	txs := make([]map[string]any, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		txs = append(txs, tx.ToMap())
	}
	hash, _ := canonjson.SHA256Hex(map[string]any{
		"index":         b.Index,
		"transactions":  txs,
		"timestamp":     b.Timestamp,
		"previous_hash": b.PreviousHash,
		"nonce":         b.Nonce,
	})
	return hash
}
