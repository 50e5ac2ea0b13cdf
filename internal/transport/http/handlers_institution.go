package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"intellikyc/internal/audit"
	"intellikyc/internal/institution"
	jwttoken "intellikyc/internal/jwt_token"
	"intellikyc/internal/platform/middleware"
	"intellikyc/internal/proof"
	"intellikyc/internal/transport/http/shared"
	dErrors "intellikyc/pkg/domain-errors"
)

type institutionHandler struct {
	logger       *slog.Logger
	institutions *institution.Service
	issuer       *proof.Issuer
	tokens       *jwttoken.JWTService
	tokenTTL     time.Duration
	auditLog     audit.Store
}

func newInstitutionHandler(deps Dependencies) *institutionHandler {
	return &institutionHandler{
		logger:       deps.Logger,
		institutions: deps.Institutions,
		issuer:       deps.Issuer,
		tokens:       deps.Tokens,
		tokenTTL:     deps.TokenTTL,
		auditLog:     deps.AuditLog,
	}
}

type onboardRequest struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
	PublicKeyPEM  string `json:"public_key_pem,omitempty"`
}

// handleOnboard registers an institution. Without a supplied public key a
// signing key pair is provisioned on this node, letting the institution issue
// credentials through the API; with one, the institution is verify-only here
// and signs elsewhere.
func (h *institutionHandler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.InstitutionID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "institution_id is required"))
		return
	}

	keyPEM := req.PublicKeyPEM
	provisioned := false
	if keyPEM == "" {
		var err error
		keyPEM, err = h.issuer.Provision(req.InstitutionID)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to provision issuing key", "error", err,
				"request_id", middleware.GetRequestID(ctx))
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to provision issuing key"))
			return
		}
		provisioned = true
	}

	inst, secret, err := h.institutions.Onboard(ctx, req.InstitutionID, req.Name, keyPEM)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"institution":     inst,
		"api_secret":      secret,
		"key_provisioned": provisioned,
	})
}

type tokenRequest struct {
	InstitutionID string `json:"institution_id"`
	APISecret     string `json:"api_secret"`
	ClientID      string `json:"client_id"`
}

func (h *institutionHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	inst, err := h.institutions.Authenticate(ctx, req.InstitutionID, req.APISecret)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(inst.ID, req.ClientID, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign access token", "error", err,
			"request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to sign access token"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.tokenTTL.Seconds()),
	})
}

func (h *institutionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.institutions.List(r.Context())
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list institutions"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"institutions": all})
}

// handleAuditTrail returns the caller's own audit events.
func (h *institutionHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	institutionID := middleware.GetInstitutionID(ctx)

	events, err := h.auditLog.ListByInstitution(ctx, institutionID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to read audit trail"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
