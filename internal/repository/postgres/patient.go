package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

const patientColumns = `patient_id, full_name, date_of_birth, gender_identity, race, address_zip_code, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, tx sqlx.ExtContext, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			patient_id, full_name, date_of_birth, gender_identity, race, address_zip_code
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at, updated_at
	`

	err := sqlx.GetContext(ctx, r.ext(tx), patient, query,
		patient.ID,
		patient.FullName,
		patient.DateOfBirth,
		patient.GenderIdentity,
		patient.Race,
		patient.AddressZipCode,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id string) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE patient_id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", notFound(err))
	}
	return &patient, nil
}

func (r *patientRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check patient: %w", err)
	}
	return exists, nil
}

// List returns every patient with its briefing status in a single query.
func (r *patientRepository) List(ctx context.Context) ([]*model.PatientSummary, error) {
	query := `
		SELECT p.patient_id, p.full_name, p.date_of_birth, p.gender_identity, p.race,
			p.address_zip_code, p.created_at, p.updated_at,
			CASE WHEN EXISTS (SELECT 1 FROM briefings b WHERE b.patient_id = p.patient_id)
				THEN $1 ELSE $2
			END AS briefing_status
		FROM patients p
		ORDER BY p.patient_id ASC
	`

	patients := []*model.PatientSummary{}
	err := r.db.SelectContext(ctx, &patients, query,
		string(model.BriefingStatusReady),
		string(model.BriefingStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "patients")
}

// DeleteAll removes every patient; dependent rows go with them via ON DELETE CASCADE.
func (r *patientRepository) DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error) {
	return r.deleteAll(ctx, tx, "patients")
}
