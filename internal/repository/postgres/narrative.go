package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type narrativeRepository struct {
	BaseRepository
}

func NewNarrativeRepository(base BaseRepository) repository.NarrativeRepository {
	return &narrativeRepository{base}
}

func (r *narrativeRepository) Create(ctx context.Context, tx sqlx.ExtContext, n *model.PatientNarrative) error {
	query := `
		INSERT INTO patient_narratives (
			narrative_id, patient_id, narrative_title, narrative_text
		) VALUES ($1, $2, $3, $4)
	`

	if _, err := r.ext(tx).ExecContext(ctx, query, n.ID, n.PatientID, n.NarrativeTitle, n.NarrativeText); err != nil {
		return fmt.Errorf("failed to create narrative: %w", err)
	}
	return nil
}

func (r *narrativeRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.PatientNarrative, error) {
	query := `
		SELECT narrative_id, patient_id, narrative_title, narrative_text
		FROM patient_narratives
		WHERE patient_id = $1
		ORDER BY narrative_id ASC
	`

	narratives := []*model.PatientNarrative{}
	if err := r.db.SelectContext(ctx, &narratives, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list narratives: %w", err)
	}
	return narratives, nil
}

func (r *narrativeRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "patient_narratives")
}
