package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write matched no row because
	// the record changed underneath the caller.
	ErrConflict = errors.New("record modified concurrently")
)

// All repository interfaces in one file
type (
	// Transactor runs fn inside a database transaction.
	Transactor interface {
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
	}

	PatientRepository interface {
		Create(ctx context.Context, tx sqlx.ExtContext, patient *model.Patient) error
		Get(ctx context.Context, id string) (*model.Patient, error)
		Exists(ctx context.Context, id string) (bool, error)
		List(ctx context.Context) ([]*model.PatientSummary, error)
		Count(ctx context.Context) (int, error)
		DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error)
	}

	EHRRepository interface {
		Create(ctx context.Context, tx sqlx.ExtContext, ehr *model.EHRHistory) error
		GetByPatient(ctx context.Context, patientID string) (*model.EHRHistory, error)
		Count(ctx context.Context) (int, error)
	}

	NarrativeRepository interface {
		Create(ctx context.Context, tx sqlx.ExtContext, narrative *model.PatientNarrative) error
		ListByPatient(ctx context.Context, patientID string) ([]*model.PatientNarrative, error)
		Count(ctx context.Context) (int, error)
	}

	ConversationRepository interface {
		Create(ctx context.Context, conv *model.ChatConversation) error
		Get(ctx context.Context, id string) (*model.ChatConversation, error)
		// AppendMessages appends msgs only if the conversation is still open and
		// holds exactly expectedLen messages; otherwise ErrConflict.
		AppendMessages(ctx context.Context, id string, expectedLen int, msgs model.Messages, complete bool) error
		Count(ctx context.Context) (int, error)
		DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error)
	}

	BriefingRepository interface {
		Create(ctx context.Context, tx sqlx.ExtContext, briefing *model.ClinicalBriefing) error
		Get(ctx context.Context, id string) (*model.ClinicalBriefing, error)
		LatestForPatient(ctx context.Context, patientID string) (*model.ClinicalBriefing, error)
		GetByConversation(ctx context.Context, conversationID string) (*model.ClinicalBriefing, error)
		Count(ctx context.Context) (int, error)
		DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, tx sqlx.ExtContext, appointment *model.Appointment) error
		Get(ctx context.Context, id string) (*model.Appointment, error)
		Update(ctx context.Context, tx sqlx.ExtContext, appointment *model.Appointment) error
		Delete(ctx context.Context, tx sqlx.ExtContext, id string) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		NextUpcoming(ctx context.Context, patientID string, now time.Time) (*model.Appointment, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, tx sqlx.ExtContext, event *model.OutboxEvent) error
		// GetPendingEventsWithLock claims up to limit due events. The batch must
		// be committed or rolled back to release the row locks.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, OutboxBatch, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
		CountPending(ctx context.Context) (int, error)
	}

	// OutboxBatch holds the row locks taken by GetPendingEventsWithLock.
	OutboxBatch interface {
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		Commit() error
		Rollback() error
	}
)
