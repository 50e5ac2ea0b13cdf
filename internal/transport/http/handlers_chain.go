package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"intellikyc/internal/audit"
	"intellikyc/internal/ledger"
	"intellikyc/internal/platform/metrics"
	"intellikyc/internal/platform/middleware"
	"intellikyc/internal/transport/http/shared"
	dErrors "intellikyc/pkg/domain-errors"
)

type chainHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	chain     *ledger.Chain
	publisher *audit.Publisher
}

func newChainHandler(deps Dependencies) *chainHandler {
	return &chainHandler{
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		chain:     deps.Chain,
		publisher: deps.Publisher,
	}
}

type submitTransactionRequest struct {
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Payload   map[string]any `json:"payload"`
}

func (h *chainHandler) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	tx, err := ledger.NewTransaction(req.Sender, req.Recipient, req.Payload)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.chain.AddTransaction(tx); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, err.Error()))
		return
	}

	h.metrics.TransactionsSubmitted.Inc()
	h.metrics.PendingTransactions.Set(float64(h.chain.PendingCount()))
	h.publisher.Emit(ctx, audit.Event{
		Institution: middleware.GetInstitutionID(ctx),
		Action:      audit.ActionTransactionSubmitted,
		Subject:     tx.TxHash,
		Details:     map[string]string{"device": middleware.GetDeviceName(ctx)},
	})

	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"tx_hash":       tx.TxHash,
		"pending_count": h.chain.PendingCount(),
	})
}

func (h *chainHandler) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start := time.Now()
	block, err := h.chain.Mine(ctx)
	if errors.Is(err, ledger.ErrNothingToMine) {
		shared.WriteError(w, dErrors.New(dErrors.CodeConflict, "no transactions to mine"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "mining failed", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "mining failed"))
		return
	}

	h.metrics.ObserveMining(time.Since(start))
	h.metrics.ChainLength.Set(float64(h.chain.Length()))
	h.metrics.PendingTransactions.Set(float64(h.chain.PendingCount()))
	h.publisher.Emit(ctx, audit.Event{
		Institution: middleware.GetInstitutionID(ctx),
		Action:      audit.ActionBlockMined,
		Subject:     block.Hash,
		Decision:    "mined",
		Details:     map[string]string{"trigger": "manual"},
	})

	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "block mined",
		"block":   block,
	})
}

func (h *chainHandler) handleGetChain(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"chain":      h.chain.Blocks(),
		"length":     h.chain.Length(),
		"difficulty": h.chain.Difficulty(),
	})
}

func (h *chainHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if err := h.chain.Validate(); err != nil {
		shared.WriteJSON(w, http.StatusOK, map[string]any{
			"valid":  false,
			"reason": err.Error(),
		})
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *chainHandler) handlePending(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"pending_transactions": h.chain.Pending(),
		"count":                h.chain.PendingCount(),
	})
}
