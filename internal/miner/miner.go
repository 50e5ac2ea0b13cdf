// Package miner runs the background mining loop that periodically seals
// pending transactions into blocks.
package miner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"intellikyc/internal/audit"
	"intellikyc/internal/ledger"
	"intellikyc/internal/platform/metrics"
)

// DefaultInterval is how often the miner checks the pending queue.
const DefaultInterval = 30 * time.Second

// Miner seals pending transactions on a fixed interval. Ticks with an empty
// queue are skipped; manual mining through the API keeps working alongside.
type Miner struct {
	chain     *ledger.Chain
	interval  time.Duration
	metrics   *metrics.Metrics
	publisher *audit.Publisher
	logger    *slog.Logger
}

func New(chain *ledger.Chain, interval time.Duration, m *metrics.Metrics, publisher *audit.Publisher, logger *slog.Logger) *Miner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{
		chain:     chain,
		interval:  interval,
		metrics:   m,
		publisher: publisher,
		logger:    logger,
	}
}

// Run blocks until ctx is done, mining whenever transactions are pending.
func (m *Miner) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "auto-miner started", slog.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "auto-miner stopped")
			return ctx.Err()
		case <-ticker.C:
			m.mineOnce(ctx)
		}
	}
}

func (m *Miner) mineOnce(ctx context.Context) {
	if m.chain.PendingCount() == 0 {
		return
	}

	start := time.Now()
	block, err := m.chain.Mine(ctx)
	if errors.Is(err, ledger.ErrNothingToMine) {
		return
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "auto-mining failed", slog.String("error", err.Error()))
		return
	}

	elapsed := time.Since(start)
	if m.metrics != nil {
		m.metrics.ObserveMining(elapsed)
		m.metrics.ChainLength.Set(float64(m.chain.Length()))
		m.metrics.PendingTransactions.Set(float64(m.chain.PendingCount()))
	}
	if m.publisher != nil {
		m.publisher.Emit(ctx, audit.Event{
			Institution: "system",
			Action:      audit.ActionBlockMined,
			Subject:     block.Hash,
			Decision:    "mined",
			Details: map[string]string{
				"trigger": "auto",
			},
		})
	}
	m.logger.InfoContext(ctx, "block mined",
		slog.Int("index", block.Index),
		slog.String("hash", block.Hash),
		slog.Int("transactions", len(block.Transactions)),
		slog.Duration("duration", elapsed),
	)
}
