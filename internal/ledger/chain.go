package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("intellikyc/ledger")

// Rejections from chain mutation. These are expected, recoverable outcomes,
// not process failures.
var (
	// ErrNothingToMine signals an empty pending queue; the chain is unchanged.
	ErrNothingToMine = errors.New("nothing to mine")
	// ErrPreviousHashMismatch signals a block that does not extend the tip.
	ErrPreviousHashMismatch = errors.New("previous hash mismatch")
	// ErrInvalidProof signals a proof that misses the difficulty prefix or
	// does not match the block's recomputed hash.
	ErrInvalidProof = errors.New("invalid proof of work")
	// ErrMissingGenesis signals a chain without a genesis block at index 0.
	// An empty history is never valid: every chain starts at genesis.
	ErrMissingGenesis = errors.New("missing genesis block")
)

// Chain owns the append-only block sequence and the pending transaction
// queue. All mutating operations serialize on an internal mutex so that
// transaction submission and mining cannot interleave destructively; callers
// share one Chain by handle instead of ambient global state.
type Chain struct {
	mu         sync.Mutex
	blocks     []Block
	pending    []Transaction
	difficulty int
}

// New creates a chain with the given proof-of-work difficulty (the number of
// leading "0" hex characters required) and mines the genesis block. Genesis
// is sealed under the same proof-of-work rule as every other block even
// though validation later exempts index 0; both behaviors are deliberate and
// preserved (see the validity tests).
func New(difficulty int) *Chain {
	c := &Chain{difficulty: difficulty}
	genesis := NewBlock(0, nil, unixNow(), GenesisPreviousHash)
	genesis.Hash = proofOfWork(&genesis, difficulty)
	c.blocks = []Block{genesis}
	return c
}

// Restore rebuilds a chain from already-sealed blocks, e.g. from a snapshot.
// It does not re-mine anything; callers are expected to run Validate and gate
// on the result.
func Restore(blocks []Block, difficulty int) *Chain {
	return &Chain{blocks: append([]Block{}, blocks...), difficulty: difficulty}
}

// Reset swaps the chain's contents for a restored snapshot in place, so every
// holder of this Chain sees the loaded history. The snapshot is validated
// first; an invalid one leaves the chain untouched. Pending transactions are
// dropped, matching snapshot semantics (snapshots never carry the queue).
func (c *Chain) Reset(blocks []Block, difficulty int) error {
	if err := CheckChainValidity(blocks, difficulty); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append([]Block{}, blocks...)
	c.pending = nil
	c.difficulty = difficulty
	return nil
}

// Difficulty returns the proof-of-work difficulty in leading zero hex chars.
func (c *Chain) Difficulty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.difficulty
}

// Length returns the number of sealed blocks including genesis.
func (c *Chain) Length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// LastBlock returns the current tip.
func (c *Chain) LastBlock() Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[len(c.blocks)-1]
}

// Blocks returns a copy of the sealed chain.
func (c *Chain) Blocks() []Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Block{}, c.blocks...)
}

// Pending returns a copy of the unconfirmed transaction queue.
func (c *Chain) Pending() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transaction{}, c.pending...)
}

// PendingCount returns the number of queued transactions.
func (c *Chain) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// AddTransaction verifies the transaction's content hash and queues it for
// the next mined block.
func (c *Chain) AddTransaction(tx Transaction) error {
	if err := tx.VerifyHash(); err != nil {
		return fmt.Errorf("transaction %s: %w", tx.TxHash, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, tx)
	return nil
}

// AddBlock appends block when proof extends the tip: the parent hash must
// match, the proof must carry the difficulty prefix, and the proof must equal
// the block's recomputed hash. On success the block is sealed with proof and
// appended; on rejection the chain is unchanged.
func (c *Chain) AddBlock(block Block, proof string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addBlockLocked(block, proof)
}

func (c *Chain) addBlockLocked(block Block, proof string) error {
	tip := c.blocks[len(c.blocks)-1]
	if block.PreviousHash != tip.Hash {
		return fmt.Errorf("block %d: %w: have %s, tip is %s",
			block.Index, ErrPreviousHashMismatch, block.PreviousHash, tip.Hash)
	}
	if !hasDifficultyPrefix(proof, c.difficulty) {
		return fmt.Errorf("block %d: %w: missing %d-zero prefix", block.Index, ErrInvalidProof, c.difficulty)
	}
	if proof != block.ComputeHash() {
		return fmt.Errorf("block %d: %w: proof does not match block contents", block.Index, ErrInvalidProof)
	}
	block.Hash = proof
	c.blocks = append(c.blocks, block)
	return nil
}

// Mine drains the pending queue into a new block and seals it with
// proof-of-work. It returns ErrNothingToMine when the queue is empty, leaving
// the chain untouched. The queue is cleared only after the block is accepted,
// atomically under the chain mutex.
//
// Proof-of-work has no cancellation path; its runtime is bounded only by the
// configured difficulty. The context is used for tracing.
func (c *Chain) Mine(ctx context.Context) (*Block, error) {
	_, span := tracer.Start(ctx, "ledger.Mine")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil, ErrNothingToMine
	}
	span.SetAttributes(
		attribute.Int("ledger.pending", len(c.pending)),
		attribute.Int("ledger.difficulty", c.difficulty),
	)

	tip := c.blocks[len(c.blocks)-1]
	block := NewBlock(tip.Index+1, append([]Transaction{}, c.pending...), unixNow(), tip.Hash)
	proof := proofOfWork(&block, c.difficulty)

	if err := c.addBlockLocked(block, proof); err != nil {
		return nil, err
	}
	c.pending = nil

	sealed := c.blocks[len(c.blocks)-1]
	return &sealed, nil
}

// Validate walks the sealed chain and returns nil when every invariant holds.
func (c *Chain) Validate() error {
	c.mu.Lock()
	blocks := append([]Block{}, c.blocks...)
	difficulty := c.difficulty
	c.mu.Unlock()
	return CheckChainValidity(blocks, difficulty)
}

// CheckChainValidity verifies that the chain starts at a genesis block and,
// walking from a virtual parent hash of "0", that every block links to its
// predecessor, that each stored hash matches the recomputed one, and that
// every block except genesis satisfies the proof-of-work prefix. It returns
// an error naming the first violation, which is how tampering and corruption
// are detected.
func CheckChainValidity(blocks []Block, difficulty int) error {
	if len(blocks) == 0 {
		return fmt.Errorf("chain is empty: %w", ErrMissingGenesis)
	}
	if blocks[0].Index != 0 {
		return fmt.Errorf("first block has index %d: %w", blocks[0].Index, ErrMissingGenesis)
	}
	previousHash := GenesisPreviousHash
	for _, block := range blocks {
		if block.PreviousHash != previousHash {
			return fmt.Errorf("block %d: %w", block.Index, ErrPreviousHashMismatch)
		}
		if block.Hash != block.ComputeHash() {
			return fmt.Errorf("block %d: hash mismatch: %w", block.Index, ErrInvalidProof)
		}
		if block.Index != 0 && !hasDifficultyPrefix(block.Hash, difficulty) {
			return fmt.Errorf("block %d: proof of work not satisfied: %w", block.Index, ErrInvalidProof)
		}
		previousHash = block.Hash
	}
	return nil
}

// proofOfWork runs the deterministic brute-force nonce search: starting at
// zero and incrementing by one, recompute the block hash until it carries the
// required zero prefix. The winning hash is returned and the block's nonce is
// left at the winning value, the smallest for which the prefix holds.
func proofOfWork(block *Block, difficulty int) string {
	block.Nonce = 0
	computed := block.ComputeHash()
	for !hasDifficultyPrefix(computed, difficulty) {
		block.Nonce++
		computed = block.ComputeHash()
	}
	block.Hash = computed
	return computed
}

func hasDifficultyPrefix(hash string, difficulty int) bool {
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}
