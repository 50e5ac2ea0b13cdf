package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"intellikyc/internal/audit"
	"intellikyc/internal/ledger"
	"intellikyc/internal/ledger/storage"
	"intellikyc/internal/platform/metrics"
	"intellikyc/internal/platform/middleware"
	"intellikyc/internal/transport/http/shared"
	dErrors "intellikyc/pkg/domain-errors"
	"intellikyc/pkg/platform/sentinel"
)

type storageHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	chain     *ledger.Chain
	snapshots *storage.Store
	publisher *audit.Publisher
}

func newStorageHandler(deps Dependencies) *storageHandler {
	return &storageHandler{
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		chain:     deps.Chain,
		snapshots: deps.Snapshots,
		publisher: deps.Publisher,
	}
}

func (h *storageHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.snapshots.Save(h.chain); err != nil {
		h.logger.ErrorContext(ctx, "failed to save chain", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to save chain"))
		return
	}

	h.publisher.Emit(ctx, audit.Event{
		Institution: middleware.GetInstitutionID(ctx),
		Action:      audit.ActionChainSaved,
		Subject:     h.chain.LastBlock().Hash,
	})
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "chain saved",
		"blocks":  h.chain.Length(),
	})
}

// handleLoad replaces the in-memory chain with the persisted snapshot. A
// corrupted snapshot is reported and the current chain stays untouched.
func (h *storageHandler) handleLoad(w http.ResponseWriter, r *http.Request) {
	h.adoptSnapshot(w, r, func() (*ledger.Chain, error) {
		return h.snapshots.Load()
	}, "snapshot")
}

func (h *storageHandler) handleBackup(w http.ResponseWriter, r *http.Request) {
	name, err := h.snapshots.CreateBackup(h.chain)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create backup", "error", err,
			"request_id", middleware.GetRequestID(r.Context()))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to create backup"))
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"backup": name})
}

func (h *storageHandler) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.snapshots.ListBackups()
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list backups"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"backups": backups})
}

type restoreRequest struct {
	Backup string `json:"backup"`
}

func (h *storageHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Backup == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "backup name is required"))
		return
	}
	h.adoptSnapshot(w, r, func() (*ledger.Chain, error) {
		return h.snapshots.LoadFromBackup(req.Backup)
	}, req.Backup)
}

func (h *storageHandler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.snapshots.Info()
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to read storage info"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"storage":              info,
		"in_memory_blocks":     h.chain.Length(),
		"pending_transactions": h.chain.PendingCount(),
	})
}

// adoptSnapshot loads a chain via load and swaps it into the running node.
// Corruption surfaces as 422 without touching the live chain.
func (h *storageHandler) adoptSnapshot(w http.ResponseWriter, r *http.Request, load func() (*ledger.Chain, error), source string) {
	ctx := r.Context()

	loaded, err := load()
	if errors.Is(err, sentinel.ErrNotFound) {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no stored chain found"))
		return
	}
	if errors.Is(err, sentinel.ErrCorrupted) {
		h.logger.WarnContext(ctx, "stored chain failed verification", "error", err,
			"source", source, "request_id", middleware.GetRequestID(ctx))
		shared.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":             "corrupted",
			"error_description": err.Error(),
		})
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load chain", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load chain"))
		return
	}

	if err := h.chain.Reset(loaded.Blocks(), loaded.Difficulty()); err != nil {
		shared.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":             "corrupted",
			"error_description": err.Error(),
		})
		return
	}

	h.metrics.ChainLength.Set(float64(h.chain.Length()))
	h.metrics.PendingTransactions.Set(0)
	h.publisher.Emit(ctx, audit.Event{
		Institution: middleware.GetInstitutionID(ctx),
		Action:      audit.ActionChainLoaded,
		Subject:     h.chain.LastBlock().Hash,
		Details:     map[string]string{"source": source},
	})
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "chain loaded",
		"blocks":  h.chain.Length(),
	})
}
