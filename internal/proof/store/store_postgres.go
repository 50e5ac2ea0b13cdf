package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"intellikyc/internal/proof"
	"intellikyc/pkg/platform/sentinel"
)

// PostgresStore persists proofs in PostgreSQL for durable archival beyond
// the in-memory lifetime of the issuing process.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed proof store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the proofs table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kyc_proofs (
			proof_id            TEXT PRIMARY KEY,
			issuing_institution TEXT NOT NULL,
			verification_level  TEXT NOT NULL,
			generated_at        DOUBLE PRECISION NOT NULL,
			proof               JSONB NOT NULL,
			stored_at           TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure proof schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, p proof.Proof) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode proof %s: %w", p.ProofID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kyc_proofs (proof_id, issuing_institution, verification_level, generated_at, proof, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (proof_id) DO UPDATE SET
			issuing_institution = EXCLUDED.issuing_institution,
			verification_level  = EXCLUDED.verification_level,
			generated_at        = EXCLUDED.generated_at,
			proof               = EXCLUDED.proof,
			stored_at           = EXCLUDED.stored_at`,
		p.ProofID,
		p.PublicClaims.IssuingInstitution,
		p.PublicClaims.VerificationLevel,
		p.GeneratedAt,
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save proof %s: %w", p.ProofID, err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, proofID string) (proof.Proof, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT proof FROM kyc_proofs WHERE proof_id = $1`, proofID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return proof.Proof{}, sentinel.ErrNotFound
	}
	if err != nil {
		return proof.Proof{}, fmt.Errorf("find proof %s: %w", proofID, err)
	}
	var p proof.Proof
	if err := json.Unmarshal(payload, &p); err != nil {
		return proof.Proof{}, fmt.Errorf("decode proof %s: %w", proofID, err)
	}
	return p, nil
}
