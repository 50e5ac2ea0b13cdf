package storage

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// snapshotSchema describes the on-disk snapshot document. Load validates
// files against it before reconstructing any domain objects, so malformed or
// truncated snapshots fail fast with a schema diagnostic instead of a partial
// chain.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["chain", "metadata"],
  "properties": {
    "chain": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["index", "timestamp", "previous_hash", "nonce", "hash", "transactions"],
        "properties": {
          "index": {"type": "integer", "minimum": 0},
          "timestamp": {"type": "number"},
          "previous_hash": {"type": "string"},
          "nonce": {"type": "integer", "minimum": 0},
          "hash": {"type": "string"},
          "transactions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["sender", "recipient", "payload", "timestamp", "signature", "tx_hash"],
              "properties": {
                "sender": {"type": "string"},
                "recipient": {"type": "string"},
                "payload": {"type": "object"},
                "timestamp": {"type": "number"},
                "signature": {"type": "string"},
                "tx_hash": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "metadata": {
      "type": "object",
      "required": ["total_blocks", "difficulty"],
      "properties": {
        "total_blocks": {"type": "integer", "minimum": 0},
        "difficulty": {"type": "integer", "minimum": 0},
        "last_block_hash": {"type": ["string", "null"]}
      }
    }
  }
}`

func validateSnapshot(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(snapshotSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validate snapshot schema: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return fmt.Errorf("snapshot does not match schema: %s", first.String())
	}
	return nil
}
