package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"intellikyc/internal/audit"
	"intellikyc/internal/institution"
	jwttoken "intellikyc/internal/jwt_token"
	"intellikyc/internal/ledger"
	"intellikyc/internal/ledger/storage"
	"intellikyc/internal/platform/metrics"
	"intellikyc/internal/proof"
	proofstore "intellikyc/internal/proof/store"
	"intellikyc/pkg/testutil"
)

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	chain    *ledger.Chain
	auditLog *audit.InMemoryStore
	cancel   context.CancelFunc
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)

	s.chain = ledger.New(1)
	snapshots, err := storage.New(s.T().TempDir(), 1, logger)
	s.Require().NoError(err)

	manager := proof.NewManager(proofstore.NewMemory())
	issuer := proof.NewIssuer(1024, manager)

	s.auditLog = audit.NewInMemoryStore()
	inbox := make(chan audit.Event, 64)
	publisher := audit.NewPublisher(inbox, logger)
	worker := audit.NewWorker(inbox, logger, s.auditLog)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() { _ = worker.Run(ctx) }()

	institutions := institution.NewService(institution.NewInMemoryStore(), manager, publisher, logger)
	tokens := jwttoken.NewJWTService("test-signing-key", "intellikyc", "intellikyc")

	s.router = NewRouter(Dependencies{
		Logger:       logger,
		Metrics:      metrics.NewWith(prometheus.NewRegistry()),
		Chain:        s.chain,
		Snapshots:    snapshots,
		Issuer:       issuer,
		Proofs:       manager,
		Institutions: institutions,
		Tokens:       tokens,
		TokenTTL:     time.Hour,
		Publisher:    publisher,
		AuditLog:     s.auditLog,
	})
}

func (s *RouterSuite) TearDownTest() {
	s.cancel()
}

// onboard registers an institution with a provisioned signing key and returns
// its one-time API secret.
func (s *RouterSuite) onboard(institutionID string) string {
	rr := s.do(http.MethodPost, "/institutions", map[string]any{
		"institution_id": institutionID,
	}, "")
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	secret, _ := (*resp)["api_secret"].(string)
	s.Require().NotEmpty(secret)
	return secret
}

func (s *RouterSuite) token(institutionID, secret string) string {
	rr := s.do(http.MethodPost, "/auth/token", map[string]any{
		"institution_id": institutionID,
		"api_secret":     secret,
	}, "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	token, _ := (*resp)["access_token"].(string)
	s.Require().NotEmpty(token)
	return token
}

func (s *RouterSuite) authedInstitution(institutionID string) string {
	secret := s.onboard(institutionID)
	return s.token(institutionID, secret)
}

func (s *RouterSuite) do(method, path string, body any, bearer string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) TestOnboardIssuesCredentialsOnce() {
	rr := s.do(http.MethodPost, "/institutions", map[string]any{
		"institution_id": "Bank_A",
		"name":           "Bank A",
	}, "")
	s.Require().Equal(http.StatusCreated, rr.Code)
	testutil.AssertJSONHasKey(s.T(), rr, "api_secret")
	testutil.AssertJSONContains(s.T(), rr, "key_provisioned", true)

	// Same ID again is a conflict, not a secret rotation.
	rr = s.do(http.MethodPost, "/institutions", map[string]any{
		"institution_id": "Bank_A",
	}, "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *RouterSuite) TestOnboardRequiresInstitutionID() {
	rr := s.do(http.MethodPost, "/institutions", map[string]any{"name": "nameless"}, "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *RouterSuite) TestTokenRejectsBadSecret() {
	s.onboard("Bank_A")

	rr := s.do(http.MethodPost, "/auth/token", map[string]any{
		"institution_id": "Bank_A",
		"api_secret":     "not-the-secret",
	}, "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	rr = s.do(http.MethodPost, "/auth/token", map[string]any{
		"institution_id": "Nobody",
		"api_secret":     "anything",
	}, "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *RouterSuite) TestMutatingRoutesRequireBearerToken() {
	for _, path := range []string{"/transactions", "/mine", "/kyc/issue", "/blockchain/save"} {
		rr := s.do(http.MethodPost, path, map[string]any{}, "")
		s.Assert().Equal(http.StatusUnauthorized, rr.Code, path)
	}
}

func (s *RouterSuite) TestChainIsPubliclyReadable() {
	rr := s.do(http.MethodGet, "/chain", nil, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "length", float64(1))
	testutil.AssertJSONContains(s.T(), rr, "difficulty", float64(1))
}

func (s *RouterSuite) TestSubmitAndMine() {
	token := s.authedInstitution("Bank_A")

	rr := s.do(http.MethodPost, "/transactions", map[string]any{
		"sender":    "Bank_A",
		"recipient": "Bank_B",
		"payload":   map[string]any{"type": "TRANSFER"},
	}, token)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	testutil.AssertJSONHasKey(s.T(), rr, "tx_hash")
	testutil.AssertJSONContains(s.T(), rr, "pending_count", float64(1))

	rr = s.do(http.MethodGet, "/transactions/pending", nil, "")
	testutil.AssertJSONContains(s.T(), rr, "count", float64(1))

	rr = s.do(http.MethodPost, "/mine", nil, token)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	s.Assert().Equal(2, s.chain.Length())
	s.Assert().Equal(0, s.chain.PendingCount())

	// Nothing left to seal.
	rr = s.do(http.MethodPost, "/mine", nil, token)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")

	rr = s.do(http.MethodGet, "/chain/validate", nil, "")
	testutil.AssertJSONContains(s.T(), rr, "valid", true)
}

func (s *RouterSuite) TestIssueVerifyShareFlow() {
	tokenA := s.authedInstitution("Bank_A")
	s.onboard("Bank_B")

	rr := s.do(http.MethodPost, "/kyc/issue", map[string]any{
		"customer_data": map[string]any{
			"name":        "John Doe",
			"national_id": "AB123456",
		},
		"verification_level": proof.LevelCDD,
	}, tokenA)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

	issued := testutil.UnmarshalResponse[struct {
		Proof proof.Proof `json:"proof"`
	}](s.T(), rr)
	proofID := issued.Proof.ProofID
	s.Require().NotEmpty(proofID)
	s.Assert().Equal("Bank_A", issued.Proof.PublicClaims.IssuingInstitution)
	s.Assert().NotContains(rr.Body.String(), "John Doe")

	// Issuance lands on the pending queue as a credential transaction.
	s.Assert().Equal(1, s.chain.PendingCount())

	rr = s.do(http.MethodGet, "/kyc/proofs/"+proofID, nil, tokenA)
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.do(http.MethodPost, "/kyc/verify", map[string]any{
		"proof_id":            proofID,
		"issuing_institution": "Bank_A",
	}, tokenA)
	s.Require().Equal(http.StatusOK, rr.Code)
	result := testutil.UnmarshalResponse[proof.VerificationResult](s.T(), rr)
	s.Assert().True(result.Valid)

	// Claiming the wrong issuer fails verification against that issuer's key.
	rr = s.do(http.MethodPost, "/kyc/verify", map[string]any{
		"proof_id":            proofID,
		"issuing_institution": "Bank_B",
	}, tokenA)
	s.Require().Equal(http.StatusOK, rr.Code)
	result = testutil.UnmarshalResponse[proof.VerificationResult](s.T(), rr)
	s.Assert().False(result.Valid)

	rr = s.do(http.MethodPost, "/kyc/share", map[string]any{
		"proof_id":                    proofID,
		"requesting_institution":      "Bank_B",
		"required_verification_level": proof.LevelCIP,
	}, tokenA)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	share := testutil.UnmarshalResponse[proof.SharingResult](s.T(), rr)
	s.Assert().True(share.Approved)
	s.Require().NotNil(share.Proof)
	s.Assert().Equal(proofID, share.Proof.OriginalProofID)

	// CDD does not satisfy an EDD requirement.
	rr = s.do(http.MethodPost, "/kyc/share", map[string]any{
		"proof_id":                    proofID,
		"requesting_institution":      "Bank_B",
		"required_verification_level": proof.LevelEDD,
	}, tokenA)
	s.Require().Equal(http.StatusOK, rr.Code)
	share = testutil.UnmarshalResponse[proof.SharingResult](s.T(), rr)
	s.Assert().False(share.Approved)
	s.Assert().Contains(share.Reason, "insufficient")
}

func (s *RouterSuite) TestIssueRejectsUnknownLevel() {
	token := s.authedInstitution("Bank_A")

	rr := s.do(http.MethodPost, "/kyc/issue", map[string]any{
		"customer_data":      map[string]any{"name": "Jane"},
		"verification_level": "PLATINUM",
	}, token)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *RouterSuite) TestExternalKeyInstitutionCannotIssue() {
	gen, err := proof.NewGenerator(1024)
	s.Require().NoError(err)
	pem, err := gen.PublicKeyPEM()
	s.Require().NoError(err)

	rr := s.do(http.MethodPost, "/institutions", map[string]any{
		"institution_id": "Bank_X",
		"public_key_pem": pem,
	}, "")
	s.Require().Equal(http.StatusCreated, rr.Code)
	testutil.AssertJSONContains(s.T(), rr, "key_provisioned", false)

	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	secret := (*resp)["api_secret"].(string)
	token := s.token("Bank_X", secret)

	rr = s.do(http.MethodPost, "/kyc/issue", map[string]any{
		"customer_data":      map[string]any{"name": "Jane"},
		"verification_level": proof.LevelCDD,
	}, token)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *RouterSuite) TestGetProofNotFound() {
	token := s.authedInstitution("Bank_A")
	rr := s.do(http.MethodGet, "/kyc/proofs/deadbeefdeadbeef", nil, token)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *RouterSuite) TestSaveAndLoadRoundTrip() {
	token := s.authedInstitution("Bank_A")
	s.mineTransfer(token)

	rr := s.do(http.MethodPost, "/blockchain/save", nil, token)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	testutil.AssertJSONContains(s.T(), rr, "blocks", float64(2))

	// Grow the live chain past the snapshot, then load it back.
	s.mineTransfer(token)
	s.Require().Equal(3, s.chain.Length())

	rr = s.do(http.MethodPost, "/blockchain/load", nil, token)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Assert().Equal(2, s.chain.Length())
	s.Assert().NoError(s.chain.Validate())
}

func (s *RouterSuite) TestLoadWithoutSnapshotAdoptsFreshChain() {
	token := s.authedInstitution("Bank_A")
	s.mineTransfer(token)
	s.Require().Equal(2, s.chain.Length())

	// No snapshot on disk: loading falls back to a fresh genesis-only chain.
	rr := s.do(http.MethodPost, "/blockchain/load", nil, token)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Assert().Equal(1, s.chain.Length())
}

func (s *RouterSuite) TestBackupAndRestore() {
	token := s.authedInstitution("Bank_A")
	s.mineTransfer(token)

	rr := s.do(http.MethodPost, "/blockchain/backup", nil, token)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	backup := testutil.UnmarshalResponse[map[string]string](s.T(), rr)
	name := (*backup)["backup"]
	s.Require().NotEmpty(name)

	rr = s.do(http.MethodGet, "/blockchain/backups", nil, token)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Assert().Contains(rr.Body.String(), name)

	s.mineTransfer(token)
	s.Require().Equal(3, s.chain.Length())

	rr = s.do(http.MethodPost, "/blockchain/restore", map[string]any{"backup": name}, token)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Assert().Equal(2, s.chain.Length())
}

func (s *RouterSuite) TestRestoreUnknownBackup() {
	token := s.authedInstitution("Bank_A")
	rr := s.do(http.MethodPost, "/blockchain/restore", map[string]any{"backup": "blockchain_backup_19700101_000000.json"}, token)
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *RouterSuite) TestAuditTrailReturnsOwnEvents() {
	token := s.authedInstitution("Bank_A")

	rr := s.do(http.MethodPost, "/kyc/issue", map[string]any{
		"customer_data":      map[string]any{"name": "Jane"},
		"verification_level": proof.LevelCDD,
	}, token)
	s.Require().Equal(http.StatusCreated, rr.Code)

	// The worker persists events asynchronously; wait for both the onboarding
	// and the issuance event to land before reading the trail.
	s.Require().Eventually(func() bool {
		events, err := s.auditLog.ListByInstitution(context.Background(), "Bank_A")
		return err == nil && len(events) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	rr = s.do(http.MethodGet, "/audit", nil, token)
	s.Require().Equal(http.StatusOK, rr.Code)
	trail := testutil.UnmarshalResponse[struct {
		Events []audit.Event `json:"events"`
	}](s.T(), rr)

	var actions []string
	for _, e := range trail.Events {
		s.Assert().Equal("Bank_A", e.Institution)
		actions = append(actions, e.Action)
	}
	s.Assert().Contains(actions, audit.ActionCredentialIssued)
}

func (s *RouterSuite) TestRejectsNonJSONBody() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/institutions", `{"institution_id":"Bank_A"}`)
	req.Header.Set("Content-Type", "text/plain")
	rr := testutil.DoRequest(s.router, req)
	s.Assert().Equal(http.StatusUnsupportedMediaType, rr.Code)
}

func (s *RouterSuite) TestHealthz() {
	rr := s.do(http.MethodGet, "/healthz", nil, "")
	s.Assert().Equal(http.StatusOK, rr.Code)
}

// mineTransfer submits one transaction and mines it into a block.
func (s *RouterSuite) mineTransfer(token string) {
	rr := s.do(http.MethodPost, "/transactions", map[string]any{
		"sender":    "Bank_A",
		"recipient": "Bank_B",
		"payload":   map[string]any{"type": "TRANSFER", "nonce": fmt.Sprint(time.Now().UnixNano())},
	}, token)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	rr = s.do(http.MethodPost, "/mine", nil, token)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
}
