package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type ehrRepository struct {
	BaseRepository
}

func NewEHRRepository(base BaseRepository) repository.EHRRepository {
	return &ehrRepository{base}
}

func (r *ehrRepository) Create(ctx context.Context, tx sqlx.ExtContext, ehr *model.EHRHistory) error {
	if ehr.ID == "" {
		ehr.ID = model.NewID("EHR-", 8)
	}

	query := `
		INSERT INTO ehr_histories (
			id, patient_id, problem_list, medication_list, recent_labs,
			surgical_history, allergies, social_history, family_history, vital_signs
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.ext(tx).ExecContext(ctx, query,
		ehr.ID,
		ehr.PatientID,
		ehr.ProblemList,
		ehr.MedicationList,
		ehr.RecentLabs,
		ehr.SurgicalHistory,
		ehr.Allergies,
		ehr.SocialHistory,
		ehr.FamilyHistory,
		ehr.VitalSigns,
	)
	if err != nil {
		return fmt.Errorf("failed to create ehr history: %w", err)
	}
	return nil
}

func (r *ehrRepository) GetByPatient(ctx context.Context, patientID string) (*model.EHRHistory, error) {
	query := `
		SELECT id, patient_id, problem_list, medication_list, recent_labs,
			surgical_history, allergies, social_history, family_history, vital_signs
		FROM ehr_histories
		WHERE patient_id = $1
		ORDER BY id ASC
		LIMIT 1
	`

	var ehr model.EHRHistory
	if err := r.db.GetContext(ctx, &ehr, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to get ehr history: %w", notFound(err))
	}
	return &ehr, nil
}

func (r *ehrRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "ehr_histories")
}
