package appointment

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/errors"
)

// PatientChecker reports unknown patients as a NotFound AppError.
type PatientChecker interface {
	EnsureExists(ctx context.Context, patientID string) error
}

// EventEmitter writes an outbox event inside the caller's transaction.
type EventEmitter interface {
	EmitTx(ctx context.Context, tx sqlx.ExtContext, eventType string, payload interface{}) error
}

type Service struct {
	repo     repository.AppointmentRepository
	patients PatientChecker
	tx       repository.Transactor
	events   EventEmitter
	now      func() time.Time
}

func NewService(repo repository.AppointmentRepository, patients PatientChecker, tx repository.Transactor, events EventEmitter) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		tx:       tx,
		events:   events,
		now:      time.Now,
	}
}

type deletedEvent struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
}

func (s *Service) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.patients.EnsureExists(ctx, req.PatientID); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		ID:              model.NewID("APT-", 10),
		PatientID:       req.PatientID,
		DateTime:        req.DateTime,
		Status:          model.AppointmentStatusScheduled,
		AppointmentType: req.AppointmentType,
		DurationMinutes: model.DefaultAppointmentMinutes,
		Location:        req.Location,
		ProviderName:    req.ProviderName,
		Notes:           req.Notes,
	}
	if req.DurationMinutes != nil {
		apt.DurationMinutes = *req.DurationMinutes
	}

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, apt); err != nil {
			return err
		}
		return s.events.EmitTx(ctx, tx, model.EventAppointmentCreated, apt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundMsg("Appointment not found", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

// ListAppointments matches status literally; an unknown status yields an
// empty list.
func (s *Service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters.UpcomingOnly && filters.Now.IsZero() {
		filters.Now = s.now().UTC()
	}

	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// ListPatientAppointments is ListAppointments scoped to an existing patient.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID string, status model.AppointmentStatus, upcomingOnly bool) ([]*model.Appointment, error) {
	if err := s.patients.EnsureExists(ctx, patientID); err != nil {
		return nil, err
	}
	return s.ListAppointments(ctx, &model.AppointmentFilters{
		PatientID:    patientID,
		Status:       status,
		UpcomingOnly: upcomingOnly,
	})
}

// NextUpcoming returns nil without error when nothing is scheduled.
func (s *Service) NextUpcoming(ctx context.Context, patientID string) (*model.Appointment, error) {
	apt, err := s.repo.NextUpcoming(ctx, patientID, s.now().UTC())
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) UpdateAppointment(ctx context.Context, id string, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("Invalid appointment status: %s", *req.Status), nil)
	}

	apt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return apt, nil
	}
	req.Apply(apt)

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Update(ctx, tx, apt); err != nil {
			return err
		}
		return s.events.EmitTx(ctx, tx, model.EventAppointmentUpdated, apt)
	})
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundMsg("Appointment not found", err)
		}
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id string) error {
	apt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.events.EmitTx(ctx, tx, model.EventAppointmentDeleted, deletedEvent{
			AppointmentID: apt.ID,
			PatientID:     apt.PatientID,
		})
	})
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFoundMsg("Appointment not found", err)
		}
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}
