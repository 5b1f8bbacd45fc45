package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

const appointmentColumns = `appointment_id, patient_id, appointment_date_time, appointment_status,
	appointment_type, duration_minutes, location, provider_name, notes, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, tx sqlx.ExtContext, a *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			appointment_id, patient_id, appointment_date_time, appointment_status,
			appointment_type, duration_minutes, location, provider_name, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING created_at, updated_at
	`

	err := sqlx.GetContext(ctx, r.ext(tx), a, query,
		a.ID,
		a.PatientID,
		a.DateTime,
		a.Status,
		a.AppointmentType,
		a.DurationMinutes,
		a.Location,
		a.ProviderName,
		a.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE appointment_id = $1`

	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err))
	}
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, tx sqlx.ExtContext, a *model.Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_date_time = $1,
			appointment_status = $2,
			appointment_type = $3,
			duration_minutes = $4,
			location = $5,
			provider_name = $6,
			notes = $7,
			updated_at = NOW()
		WHERE appointment_id = $8
		RETURNING updated_at
	`

	err := sqlx.GetContext(ctx, r.ext(tx), &a.UpdatedAt, query,
		a.DateTime,
		a.Status,
		a.AppointmentType,
		a.DurationMinutes,
		a.Location,
		a.ProviderName,
		a.Notes,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", notFound(err))
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, tx sqlx.ExtContext, id string) error {
	result, err := r.ext(tx).ExecContext(ctx, `DELETE FROM appointments WHERE appointment_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List applies the optional filters and always orders by appointment time ascending.
func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query, args := appointmentListQuery(filters)

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// NextUpcoming returns the earliest scheduled appointment at or after now, or
// ErrNotFound. An empty patientID searches across all patients.
func (r *appointmentRepository) NextUpcoming(ctx context.Context, patientID string, now time.Time) (*model.Appointment, error) {
	query, args := appointmentListQuery(&model.AppointmentFilters{
		PatientID:    patientID,
		UpcomingOnly: true,
		Now:          now,
	})

	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, query+" LIMIT 1", args...); err != nil {
		return nil, fmt.Errorf("failed to get next appointment: %w", notFound(err))
	}
	return &a, nil
}

func appointmentListQuery(filters *model.AppointmentFilters) (string, []interface{}) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.PatientID != "" {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND appointment_status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if filters.StartDate != nil {
			query += fmt.Sprintf(" AND appointment_date_time >= $%d", argCount)
			args = append(args, *filters.StartDate)
			argCount++
		}
		if filters.EndDate != nil {
			query += fmt.Sprintf(" AND appointment_date_time <= $%d", argCount)
			args = append(args, *filters.EndDate)
			argCount++
		}
		if filters.UpcomingOnly {
			query += fmt.Sprintf(" AND appointment_date_time >= $%d AND appointment_status = $%d", argCount, argCount+1)
			args = append(args, filters.Now, model.AppointmentStatusScheduled)
		}
	}

	return query + " ORDER BY appointment_date_time ASC", args
}
