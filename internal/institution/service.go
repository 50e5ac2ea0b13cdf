package institution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"intellikyc/internal/audit"
	"intellikyc/internal/institution/secrets"
	dErrors "intellikyc/pkg/domain-errors"
	"intellikyc/pkg/platform/sentinel"
)

// Store is the persistence contract for the institution registry.
type Store interface {
	Create(ctx context.Context, inst *Institution) error
	Update(ctx context.Context, inst *Institution) error
	FindByID(ctx context.Context, institutionID string) (*Institution, error)
	List(ctx context.Context) ([]*Institution, error)
}

// KeyRegistrar receives an institution's verification key on onboarding. The
// proof manager implements it.
type KeyRegistrar interface {
	RegisterInstitution(institutionID, publicKeyPEM string) error
}

// Service orchestrates institution onboarding and authentication.
type Service struct {
	store     Store
	registrar KeyRegistrar
	publisher *audit.Publisher
	logger    *slog.Logger
	clock     func() time.Time
}

func NewService(store Store, registrar KeyRegistrar, publisher *audit.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		registrar: registrar,
		publisher: publisher,
		logger:    logger,
		clock:     time.Now,
	}
}

// Onboard registers a new institution: its verification key becomes usable
// for proof verification and a fresh API secret is issued. The plaintext
// secret is returned exactly once and only its bcrypt hash is stored.
func (s *Service) Onboard(ctx context.Context, institutionID, name, publicKeyPEM string) (*Institution, string, error) {
	inst, err := NewInstitution(institutionID, name, s.clock())
	if err != nil {
		return nil, "", err
	}

	// Validate the key before touching any state.
	if err := s.registrar.RegisterInstitution(inst.ID, publicKeyPEM); err != nil {
		return nil, "", err
	}
	inst.PublicKeyPEM = publicKeyPEM

	secret, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not issue api secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", err
	}
	inst.SecretHash = hash

	if err := s.store.Create(ctx, inst); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "institution id already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "could not store institution")
	}

	if s.publisher != nil {
		s.publisher.Emit(ctx, audit.Event{
			Institution: inst.ID,
			Action:      audit.ActionInstitutionOnboarded,
			Subject:     inst.ID,
			Decision:    "registered",
		})
	}
	s.logger.InfoContext(ctx, "institution onboarded", slog.String("institution_id", inst.ID))
	return inst, secret, nil
}

// Authenticate checks an institution's API secret. Unknown IDs and wrong
// secrets are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, institutionID, secret string) (*Institution, error) {
	inst, err := s.store.FindByID(ctx, institutionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid institution credentials")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load institution")
	}
	if !inst.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "institution is suspended")
	}
	if err := secrets.Verify(secret, inst.SecretHash); err != nil {
		if dErrors.Is(err, dErrors.CodeUnauthorized) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid institution credentials")
		}
		return nil, err
	}
	return inst, nil
}

// Get returns a registered institution.
func (s *Service) Get(ctx context.Context, institutionID string) (*Institution, error) {
	inst, err := s.store.FindByID(ctx, institutionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "institution not found")
	}
	return inst, err
}

// List returns all registered institutions.
func (s *Service) List(ctx context.Context) ([]*Institution, error) {
	return s.store.List(ctx)
}

// Suspend blocks an institution from the API.
func (s *Service) Suspend(ctx context.Context, institutionID string) error {
	return s.transition(ctx, institutionID, (*Institution).Suspend)
}

// Reactivate restores a suspended institution.
func (s *Service) Reactivate(ctx context.Context, institutionID string) error {
	return s.transition(ctx, institutionID, (*Institution).Reactivate)
}

func (s *Service) transition(ctx context.Context, institutionID string, apply func(*Institution) error) error {
	inst, err := s.Get(ctx, institutionID)
	if err != nil {
		return err
	}
	if err := apply(inst); err != nil {
		return err
	}
	return s.store.Update(ctx, inst)
}
