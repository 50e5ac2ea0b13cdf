// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and never embed business logic, so transport concerns stay
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intellikyc/internal/audit"
	"intellikyc/internal/institution"
	jwttoken "intellikyc/internal/jwt_token"
	"intellikyc/internal/ledger"
	"intellikyc/internal/ledger/storage"
	"intellikyc/internal/platform/metrics"
	"intellikyc/internal/platform/middleware"
	"intellikyc/internal/proof"
	"intellikyc/internal/transport/http/shared"
)

// Dependencies carries everything the HTTP layer needs, wired in main.
type Dependencies struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Chain        *ledger.Chain
	Snapshots    *storage.Store
	Issuer       *proof.Issuer
	Proofs       *proof.Manager
	Institutions *institution.Service
	Tokens       *jwttoken.JWTService
	TokenTTL     time.Duration
	Publisher    *audit.Publisher
	AuditLog     audit.Store
}

// NewRouter wires all endpoints. Mutating routes require a bearer token; the
// chain itself is public information and stays readable without one.
func NewRouter(deps Dependencies) http.Handler {
	chainH := newChainHandler(deps)
	kycH := newKYCHandler(deps)
	storageH := newStorageHandler(deps)
	institutionH := newInstitutionHandler(deps)

	validator := jwttoken.NewJWTServiceAdapter(deps.Tokens)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(deps.Metrics))
	r.Use(middleware.DeviceInfo)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Public surface.
	r.Post("/institutions", institutionH.handleOnboard)
	r.Get("/institutions", institutionH.handleList)
	r.Post("/auth/token", institutionH.handleToken)
	r.Get("/chain", chainH.handleGetChain)
	r.Get("/chain/validate", chainH.handleValidate)
	r.Get("/transactions/pending", chainH.handlePending)
	r.Get("/blockchain/info", storageH.handleInfo)

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, deps.Logger))

		r.Post("/transactions", chainH.handleSubmitTransaction)
		r.Post("/mine", chainH.handleMine)

		r.Post("/kyc/issue", kycH.handleIssue)
		r.Post("/kyc/verify", kycH.handleVerify)
		r.Post("/kyc/share", kycH.handleShare)
		r.Get("/kyc/proofs/{proofID}", kycH.handleGetProof)

		r.Post("/blockchain/save", storageH.handleSave)
		r.Post("/blockchain/load", storageH.handleLoad)
		r.Post("/blockchain/backup", storageH.handleBackup)
		r.Get("/blockchain/backups", storageH.handleListBackups)
		r.Post("/blockchain/restore", storageH.handleRestore)

		r.Get("/audit", institutionH.handleAuditTrail)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
