package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

const briefingColumns = `briefing_id, patient_id, conversation_id, created_at, ai_summary,
	key_insights_flags, COALESCE(equity_and_context_flags, '[]'::jsonb) AS equity_and_context_flags,
	reported_symptoms_structured, relevant_history_surfaced`

type briefingRepository struct {
	BaseRepository
}

func NewBriefingRepository(base BaseRepository) repository.BriefingRepository {
	return &briefingRepository{base}
}

func (r *briefingRepository) Create(ctx context.Context, tx sqlx.ExtContext, b *model.ClinicalBriefing) error {
	query := `
		INSERT INTO briefings (
			briefing_id, patient_id, conversation_id, ai_summary, key_insights_flags,
			equity_and_context_flags, reported_symptoms_structured, relevant_history_surfaced
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING created_at
	`

	err := sqlx.GetContext(ctx, r.ext(tx), &b.CreatedAt, query,
		b.ID,
		b.PatientID,
		b.ConversationID,
		b.AISummary,
		b.KeyInsightsFlags,
		b.EquityAndContextFlags,
		b.ReportedSymptomsStructured,
		b.RelevantHistorySurfaced,
	)
	if err != nil {
		return fmt.Errorf("failed to create briefing: %w", conflict(err))
	}
	return nil
}

func (r *briefingRepository) Get(ctx context.Context, id string) (*model.ClinicalBriefing, error) {
	return r.getOne(ctx, `SELECT `+briefingColumns+` FROM briefings WHERE briefing_id = $1`, id)
}

func (r *briefingRepository) LatestForPatient(ctx context.Context, patientID string) (*model.ClinicalBriefing, error) {
	query := `
		SELECT ` + briefingColumns + `
		FROM briefings
		WHERE patient_id = $1
		ORDER BY created_at DESC, briefing_id DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, patientID)
}

func (r *briefingRepository) GetByConversation(ctx context.Context, conversationID string) (*model.ClinicalBriefing, error) {
	return r.getOne(ctx, `SELECT `+briefingColumns+` FROM briefings WHERE conversation_id = $1`, conversationID)
}

func (r *briefingRepository) getOne(ctx context.Context, query string, arg string) (*model.ClinicalBriefing, error) {
	var b model.ClinicalBriefing
	if err := r.db.GetContext(ctx, &b, query, arg); err != nil {
		return nil, fmt.Errorf("failed to get briefing: %w", notFound(err))
	}
	return &b, nil
}

func (r *briefingRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "briefings")
}

func (r *briefingRepository) DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error) {
	return r.deleteAll(ctx, tx, "briefings")
}
