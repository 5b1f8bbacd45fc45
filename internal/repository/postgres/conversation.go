package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type conversationRepository struct {
	BaseRepository
}

func NewConversationRepository(base BaseRepository) repository.ConversationRepository {
	return &conversationRepository{base}
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.ChatConversation) error {
	query := `
		INSERT INTO chat_conversations (
			conversation_id, patient_id, is_complete, messages
		) VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.GetContext(ctx, conv, query,
		conv.ID,
		conv.PatientID,
		conv.IsComplete,
		conv.Messages,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) Get(ctx context.Context, id string) (*model.ChatConversation, error) {
	query := `
		SELECT c.conversation_id, c.patient_id, c.created_at, c.updated_at, c.is_complete, c.messages,
			b.briefing_id
		FROM chat_conversations c
		LEFT JOIN briefings b ON b.conversation_id = c.conversation_id
		WHERE c.conversation_id = $1
	`

	var conv model.ChatConversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", notFound(err))
	}
	return &conv, nil
}

func (r *conversationRepository) AppendMessages(ctx context.Context, id string, expectedLen int, msgs model.Messages, complete bool) error {
	query := `
		UPDATE chat_conversations
		SET messages = messages || $1::jsonb,
			is_complete = $2,
			updated_at = NOW()
		WHERE conversation_id = $3
		AND is_complete = FALSE
		AND jsonb_array_length(messages) = $4
	`

	result, err := r.db.ExecContext(ctx, query, msgs, complete, id, expectedLen)
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM chat_conversations WHERE conversation_id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func (r *conversationRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "chat_conversations")
}

func (r *conversationRepository) DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error) {
	return r.deleteAll(ctx, tx, "chat_conversations")
}
