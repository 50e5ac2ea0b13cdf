package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"intellikyc/internal/proof"
	"intellikyc/pkg/platform/sentinel"
)

const redisKeyPrefix = "kyc:proof:"

// RedisStore persists proofs in Redis. Keys expire after the proof lifetime,
// so storage-level retention matches the scheme's 24h verification window.
type RedisStore struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed proof store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, p proof.Proof) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode proof %s: %w", p.ProofID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+p.ProofID, data, proof.Lifetime).Err(); err != nil {
		return fmt.Errorf("save proof %s: %w", p.ProofID, err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, proofID string) (proof.Proof, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+proofID).Bytes()
	if errors.Is(err, redis.Nil) {
		return proof.Proof{}, sentinel.ErrNotFound
	}
	if err != nil {
		return proof.Proof{}, fmt.Errorf("find proof %s: %w", proofID, err)
	}
	var p proof.Proof
	if err := json.Unmarshal(data, &p); err != nil {
		return proof.Proof{}, fmt.Errorf("decode proof %s: %w", proofID, err)
	}
	return p, nil
}
