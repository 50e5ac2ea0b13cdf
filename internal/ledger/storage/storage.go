// Package storage persists the ledger as a JSON snapshot plus full,
// timestamped backups. Snapshots are whole-chain documents, not deltas, and
// every load re-verifies transaction hashes and chain validity instead of
// trusting the file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"intellikyc/internal/ledger"
	"intellikyc/pkg/platform/sentinel"
)

const (
	chainFileName    = "blockchain.json"
	metadataFileName = "metadata.json"
	backupDirName    = "backups"
	backupPrefix     = "blockchain_backup_"
	backupTimeLayout = "20060102_150405"
)

// Store owns the snapshot directory layout: one chain file, one metadata
// file, and a backups subdirectory of full copies.
type Store struct {
	dir          string
	chainFile    string
	metadataFile string
	backupDir    string
	difficulty   int
	logger       *slog.Logger
}

// New prepares the storage directories. difficulty is used when no snapshot
// exists yet and a fresh genesis-only chain must be created.
func New(dir string, difficulty int, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	backupDir := filepath.Join(dir, backupDirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Store{
		dir:          dir,
		chainFile:    filepath.Join(dir, chainFileName),
		metadataFile: filepath.Join(dir, metadataFileName),
		backupDir:    backupDir,
		difficulty:   difficulty,
		logger:       logger,
	}, nil
}

type transactionRecord struct {
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Payload   map[string]any `json:"payload"`
	Timestamp float64        `json:"timestamp"`
	Signature string         `json:"signature"`
	TxHash    string         `json:"tx_hash"`
}

type blockRecord struct {
	Index        int                 `json:"index"`
	Timestamp    float64             `json:"timestamp"`
	PreviousHash string              `json:"previous_hash"`
	Nonce        uint64              `json:"nonce"`
	Hash         string              `json:"hash"`
	Transactions []transactionRecord `json:"transactions"`
}

type snapshotMetadata struct {
	TotalBlocks     int    `json:"total_blocks"`
	Difficulty      int    `json:"difficulty"`
	SavedAt         string `json:"saved_at,omitempty"`
	BackupCreatedAt string `json:"backup_created_at,omitempty"`
	LastBlockHash   string `json:"last_block_hash"`
}

type snapshotDocument struct {
	Chain    []blockRecord    `json:"chain"`
	Metadata snapshotMetadata `json:"metadata"`
}

// Save serializes the whole chain into the snapshot file, overwriting the
// previous snapshot. The write goes through a temp file and rename so a crash
// mid-write never leaves a truncated snapshot behind.
func (s *Store) Save(chain *ledger.Chain) error {
	doc := buildDocument(chain)
	doc.Metadata.SavedAt = time.Now().Format(time.RFC3339)

	if err := writeJSONAtomic(s.chainFile, doc); err != nil {
		return fmt.Errorf("save blockchain: %w", err)
	}
	if err := writeJSONAtomic(s.metadataFile, doc.Metadata); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	s.logger.Info("blockchain saved",
		"path", s.chainFile,
		"total_blocks", doc.Metadata.TotalBlocks,
	)
	return nil
}

// Load reconstructs the chain from the snapshot file. A missing snapshot
// yields a fresh genesis-only chain. Stored hashes are re-verified: a
// transaction that cannot be rebuilt or whose content no longer matches its
// tx_hash, or a chain that fails the validity walk, is returned together
// with an error wrapping
// sentinel.ErrCorrupted. The caller decides whether that is fatal; the chain
// data is not withheld.
func (s *Store) Load() (*ledger.Chain, error) {
	return s.loadFile(s.chainFile)
}

func (s *Store) loadFile(path string) (*ledger.Chain, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no saved blockchain found, creating new chain", "path", path)
		return ledger.New(s.difficulty), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if err := validateSnapshot(data); err != nil {
		return nil, err
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	difficulty := doc.Metadata.Difficulty
	if difficulty == 0 {
		difficulty = s.difficulty
	}

	var corrupted []string
	blocks := make([]ledger.Block, 0, len(doc.Chain))
	for _, rec := range doc.Chain {
		txs := make([]ledger.Transaction, 0, len(rec.Transactions))
		for _, txRec := range rec.Transactions {
			tx, err := ledger.NewTransactionAt(
				txRec.Sender, txRec.Recipient, ledger.Payload(txRec.Payload),
				txRec.Timestamp, txRec.Signature,
			)
			switch {
			case err != nil:
				// An unbuildable transaction is corruption like any
				// other integrity violation; carry the record as written
				// so the caller still sees the full file.
				corrupted = append(corrupted,
					fmt.Sprintf("block %d transaction %s: %v", rec.Index, txRec.TxHash, err))
				tx = ledger.Transaction{
					Sender:    txRec.Sender,
					Recipient: txRec.Recipient,
					Payload:   ledger.Payload(txRec.Payload),
					Timestamp: txRec.Timestamp,
					Signature: txRec.Signature,
				}
			case tx.TxHash != txRec.TxHash:
				corrupted = append(corrupted,
					fmt.Sprintf("block %d transaction %s: stored hash does not match contents", rec.Index, txRec.TxHash))
			}
			// Keep the stored hash so the block-level check sees the file as
			// written; the mismatch above is already recorded as corruption.
			tx.TxHash = txRec.TxHash
			txs = append(txs, tx)
		}
		blocks = append(blocks, ledger.Block{
			Index:        rec.Index,
			Transactions: txs,
			Timestamp:    rec.Timestamp,
			PreviousHash: rec.PreviousHash,
			Nonce:        rec.Nonce,
			Hash:         rec.Hash,
		})
	}

	chain := ledger.Restore(blocks, difficulty)
	s.logger.Info("blockchain loaded", "path", path, "total_blocks", len(blocks))

	if err := chain.Validate(); err != nil {
		corrupted = append(corrupted, err.Error())
	}
	if len(corrupted) > 0 {
		s.logger.Warn("loaded blockchain failed validation", "violations", corrupted)
		return chain, fmt.Errorf("%s: %w", strings.Join(corrupted, "; "), sentinel.ErrCorrupted)
	}
	return chain, nil
}

// CreateBackup writes an independent, full, timestamped copy of the chain to
// the backups directory and returns the backup file name.
func (s *Store) CreateBackup(chain *ledger.Chain) (string, error) {
	name := backupPrefix + time.Now().Format(backupTimeLayout) + ".json"
	doc := buildDocument(chain)
	doc.Metadata.BackupCreatedAt = time.Now().Format(time.RFC3339)

	if err := writeJSONAtomic(filepath.Join(s.backupDir, name), doc); err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	s.logger.Info("backup created", "name", name)
	return name, nil
}

// ListBackups returns backup file names, most recent first.
func (s *Store) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// LoadFromBackup reconstructs a chain from a named backup file with the same
// verification contract as Load.
func (s *Store) LoadFromBackup(name string) (*ledger.Chain, error) {
	path := filepath.Join(s.backupDir, filepath.Base(name))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("backup %s: %w", name, sentinel.ErrNotFound)
	}
	return s.loadFile(path)
}

// Info describes the state of the storage directory.
type Info struct {
	StoragePath       string    `json:"storage_path"`
	ChainFileExists   bool      `json:"chain_file_exists"`
	ChainFileSize     int64     `json:"chain_file_size,omitempty"`
	ChainFileModified time.Time `json:"chain_file_modified,omitzero"`
	BackupsCount      int       `json:"backups_count"`
	Backups           []string  `json:"backups"`
}

// Info reports snapshot existence and the backup inventory.
func (s *Store) Info() (Info, error) {
	info := Info{StoragePath: s.dir, Backups: []string{}}

	if stat, err := os.Stat(s.chainFile); err == nil {
		info.ChainFileExists = true
		info.ChainFileSize = stat.Size()
		info.ChainFileModified = stat.ModTime()
	}

	backups, err := s.ListBackups()
	if err != nil {
		return info, err
	}
	info.Backups = backups
	info.BackupsCount = len(backups)
	return info, nil
}

func buildDocument(chain *ledger.Chain) snapshotDocument {
	blocks := chain.Blocks()
	doc := snapshotDocument{
		Chain: make([]blockRecord, 0, len(blocks)),
		Metadata: snapshotMetadata{
			TotalBlocks: len(blocks),
			Difficulty:  chain.Difficulty(),
		},
	}
	if len(blocks) > 0 {
		doc.Metadata.LastBlockHash = blocks[len(blocks)-1].Hash
	}
	for _, block := range blocks {
		rec := blockRecord{
			Index:        block.Index,
			Timestamp:    block.Timestamp,
			PreviousHash: block.PreviousHash,
			Nonce:        block.Nonce,
			Hash:         block.Hash,
			Transactions: make([]transactionRecord, 0, len(block.Transactions)),
		}
		for _, tx := range block.Transactions {
			rec.Transactions = append(rec.Transactions, transactionRecord{
				Sender:    tx.Sender,
				Recipient: tx.Recipient,
				Payload:   tx.Payload,
				Timestamp: tx.Timestamp,
				Signature: tx.Signature,
				TxHash:    tx.TxHash,
			})
		}
		doc.Chain = append(doc.Chain, rec)
	}
	return doc
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
