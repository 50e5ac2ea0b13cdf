package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intellikyc/internal/proof"
	"intellikyc/internal/proof/store"
	"intellikyc/pkg/platform/sentinel"
)

func sampleProof(id string) proof.Proof {
	return proof.Proof{
		ProofType:      proof.TypeKYCVerification,
		CommitmentHash: "a1b2c3",
		Challenge:      "d4e5f6",
		PublicClaims: proof.PublicClaims{
			VerificationLevel:     proof.LevelCDD,
			IssuingInstitution:    "Bank_A",
			VerificationCompleted: true,
			MeetsCompliance:       true,
			Timestamp:             1700000000,
		},
		ProofID:        id,
		ProofSignature: "0011",
		GeneratedAt:    1700000000,
	}
}

func TestMemoryStore_SaveAndFind(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	p := sampleProof("0123456789abcdef")
	require.NoError(t, s.Save(ctx, p))

	got, err := s.FindByID(ctx, p.ProofID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestMemoryStore_FindMissing(t *testing.T) {
	s := store.NewMemory()

	_, err := s.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStore_SaveOverwrites(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	p := sampleProof("0123456789abcdef")
	require.NoError(t, s.Save(ctx, p))

	p.PublicClaims.VerificationLevel = proof.LevelEDD
	require.NoError(t, s.Save(ctx, p))

	got, err := s.FindByID(ctx, p.ProofID)
	require.NoError(t, err)
	assert.Equal(t, proof.LevelEDD, got.PublicClaims.VerificationLevel)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id := fmt.Sprintf("proof-%02d", idx)
			_ = s.Save(ctx, sampleProof(id))
			_, _ = s.FindByID(ctx, id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		_, err := s.FindByID(ctx, fmt.Sprintf("proof-%02d", i))
		assert.NoError(t, err)
	}
}
