package patient

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/errors"
)

// ErrEHRNotFound is wrapped by EHRHistory when the patient has no record.
var ErrEHRNotFound = stderrors.New("ehr history not found")

type Service struct {
	repo          repository.PatientRepository
	ehrRepo       repository.EHRRepository
	narrativeRepo repository.NarrativeRepository
	briefingRepo  repository.BriefingRepository
	cache         *cache.Cache
}

// NewService wires the patient read paths. Patients and EHR snapshots are
// read-only through the API, so c may hold them for its default TTL.
func NewService(
	repo repository.PatientRepository,
	ehrRepo repository.EHRRepository,
	narrativeRepo repository.NarrativeRepository,
	briefingRepo repository.BriefingRepository,
	c *cache.Cache,
) *Service {
	return &Service{
		repo:          repo,
		ehrRepo:       ehrRepo,
		narrativeRepo: narrativeRepo,
		briefingRepo:  briefingRepo,
		cache:         c,
	}
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.PatientSummary, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	key := "patient:" + id
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Patient), nil
	}

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("Patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	s.cache.SetDefault(key, p)
	return p, nil
}

// EHRHistory returns the patient's EHR snapshot or an error wrapping
// ErrEHRNotFound. The patient is not checked.
func (s *Service) EHRHistory(ctx context.Context, patientID string) (*model.EHRHistory, error) {
	key := "ehr:" + patientID
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.EHRHistory), nil
	}

	ehr, err := s.ehrRepo.GetByPatient(ctx, patientID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrEHRNotFound, err)
		}
		return nil, fmt.Errorf("failed to get ehr history: %w", err)
	}
	s.cache.SetDefault(key, ehr)
	return ehr, nil
}

func (s *Service) GetEHR(ctx context.Context, patientID string) (*model.EHRRecord, error) {
	if _, err := s.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	ehr, err := s.EHRHistory(ctx, patientID)
	if err != nil {
		if stderrors.Is(err, ErrEHRNotFound) {
			return nil, errors.NotFoundMsg("EHR history not found for this patient", err)
		}
		return nil, err
	}
	return &ehr.EHRRecord, nil
}

func (s *Service) ListNarratives(ctx context.Context, patientID string) ([]*model.PatientNarrative, error) {
	if err := s.EnsureExists(ctx, patientID); err != nil {
		return nil, err
	}
	narratives, err := s.narrativeRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list narratives: %w", err)
	}
	return narratives, nil
}

// LatestBriefing returns the newest briefing for the patient.
func (s *Service) LatestBriefing(ctx context.Context, patientID string) (*model.ClinicalBriefing, error) {
	b, err := s.briefingRepo.LatestForPatient(ctx, patientID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundMsg("Briefing not found for this patient", err)
		}
		return nil, fmt.Errorf("failed to get briefing: %w", err)
	}
	return b, nil
}

// EnsureExists returns a NotFound AppError when the patient is unknown.
func (s *Service) EnsureExists(ctx context.Context, patientID string) error {
	if _, ok := s.cache.Get("patient:" + patientID); ok {
		return nil
	}
	ok, err := s.repo.Exists(ctx, patientID)
	if err != nil {
		return fmt.Errorf("failed to check patient: %w", err)
	}
	if !ok {
		return errors.NotFound("Patient", repository.ErrNotFound)
	}
	return nil
}
