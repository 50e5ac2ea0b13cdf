package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intellikyc/internal/audit"
	"intellikyc/internal/ledger"
	"intellikyc/internal/platform/metrics"
	"intellikyc/internal/platform/middleware"
	"intellikyc/internal/proof"
	"intellikyc/internal/transport/http/shared"
	dErrors "intellikyc/pkg/domain-errors"
)

// Ledger transaction payload types recorded for credential activity.
const (
	txTypeCredential = "KYC_CREDENTIAL"
	txTypeSharing    = "KYC_SHARING"
	txRecipient      = "kyc_registry"
)

type kycHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	chain     *ledger.Chain
	issuer    *proof.Issuer
	proofs    *proof.Manager
	publisher *audit.Publisher
}

func newKYCHandler(deps Dependencies) *kycHandler {
	return &kycHandler{
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		chain:     deps.Chain,
		issuer:    deps.Issuer,
		proofs:    deps.Proofs,
		publisher: deps.Publisher,
	}
}

type issueRequest struct {
	CustomerData      map[string]any `json:"customer_data"`
	VerificationLevel string         `json:"verification_level"`
}

// handleIssue generates a credential proof signed with the authenticated
// institution's provisioned key, stores it, and records the issuance on the
// ledger. The customer data itself never reaches the chain or the response.
func (h *kycHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	institutionID := middleware.GetInstitutionID(ctx)

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.CustomerData) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "customer_data is required"))
		return
	}

	generator, err := h.issuer.Generator(institutionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	p, err := generator.GenerateKYCProof(ctx, req.CustomerData, req.VerificationLevel, institutionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.proofs.StoreProof(ctx, p); err != nil {
		h.logger.ErrorContext(ctx, "failed to store proof", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to store proof"))
		return
	}

	if err := h.recordOnLedger(p.PublicClaims.IssuingInstitution, map[string]any{
		"type":               txTypeCredential,
		"proof_id":           p.ProofID,
		"commitment_hash":    p.CommitmentHash,
		"verification_level": p.PublicClaims.VerificationLevel,
	}); err != nil {
		h.logger.ErrorContext(ctx, "failed to record issuance on ledger", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to record issuance"))
		return
	}

	h.metrics.ProofsIssued.Inc()
	h.metrics.PendingTransactions.Set(float64(h.chain.PendingCount()))
	h.publisher.Emit(ctx, audit.Event{
		Institution: institutionID,
		Action:      audit.ActionCredentialIssued,
		Subject:     p.ProofID,
		Details: map[string]string{
			"verification_level": p.PublicClaims.VerificationLevel,
			"device":             middleware.GetDeviceName(ctx),
		},
	})

	shared.WriteJSON(w, http.StatusCreated, map[string]any{"proof": p})
}

type verifyRequest struct {
	ProofID            string `json:"proof_id"`
	IssuingInstitution string `json:"issuing_institution"`
}

// handleVerify checks a stored proof against the claimed issuer's registered
// key. Invalid proofs come back as 200 responses with valid=false; only
// malformed requests error.
func (h *kycHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ProofID == "" || req.IssuingInstitution == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "proof_id and issuing_institution are required"))
		return
	}

	result, err := h.proofs.VerifyStoredProof(ctx, req.ProofID, req.IssuingInstitution)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "verification failed"))
		return
	}

	h.metrics.RecordVerification(result.Valid)
	h.publisher.Emit(ctx, audit.Event{
		Institution: middleware.GetInstitutionID(ctx),
		Action:      audit.ActionCredentialVerified,
		Subject:     req.ProofID,
		Decision:    verdict(result.Valid),
		Reason:      firstReason(result.FailureReasons),
	})

	shared.WriteJSON(w, http.StatusOK, result)
}

type shareRequest struct {
	ProofID                   string `json:"proof_id"`
	RequestingInstitution     string `json:"requesting_institution"`
	RequiredVerificationLevel string `json:"required_verification_level"`
}

// handleShare derives a cross-institution sharing proof from a stored
// credential. Denials are 200 responses carrying the reason; the decision is
// recorded on the ledger either way.
func (h *kycHandler) handleShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ProofID == "" || req.RequestingInstitution == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "proof_id and requesting_institution are required"))
		return
	}

	original, err := h.proofs.GetProof(ctx, req.ProofID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "proof not found"))
		return
	}

	generator, err := h.issuer.Generator(original.PublicClaims.IssuingInstitution)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := generator.GenerateCrossInstitutionProof(ctx, original,
		req.RequestingInstitution, req.RequiredVerificationLevel)
	if err != nil {
		h.logger.ErrorContext(ctx, "sharing failed", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "sharing failed"))
		return
	}

	if result.Approved {
		if err := h.recordOnLedger(original.PublicClaims.IssuingInstitution, map[string]any{
			"type":                   txTypeSharing,
			"original_proof_id":      req.ProofID,
			"requesting_institution": req.RequestingInstitution,
			"verification_level":     result.Proof.VerificationLevelConfirmed,
		}); err != nil {
			h.logger.ErrorContext(ctx, "failed to record sharing on ledger", "error", err,
				"request_id", middleware.GetRequestID(ctx))
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to record sharing"))
			return
		}
	}

	h.metrics.RecordSharing(result.Approved)
	h.publisher.Emit(ctx, audit.Event{
		Institution: middleware.GetInstitutionID(ctx),
		Action:      audit.ActionCredentialShared,
		Subject:     req.ProofID,
		Decision:    shareVerdict(result.Approved),
		Reason:      result.Reason,
		Details:     map[string]string{"requesting_institution": req.RequestingInstitution},
	})

	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *kycHandler) handleGetProof(w http.ResponseWriter, r *http.Request) {
	proofID := chi.URLParam(r, "proofID")
	p, err := h.proofs.GetProof(r.Context(), proofID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "proof not found"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"proof": p})
}

func (h *kycHandler) recordOnLedger(sender string, payload map[string]any) error {
	tx, err := ledger.NewTransaction(sender, txRecipient, payload)
	if err != nil {
		return err
	}
	return h.chain.AddTransaction(tx)
}

func verdict(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

func shareVerdict(approved bool) string {
	if approved {
		return "approved"
	}
	return "denied"
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}
