// Package mocks holds testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

var (
	_ repository.Transactor             = (*Transactor)(nil)
	_ repository.PatientRepository      = (*PatientRepository)(nil)
	_ repository.EHRRepository          = (*EHRRepository)(nil)
	_ repository.NarrativeRepository    = (*NarrativeRepository)(nil)
	_ repository.ConversationRepository = (*ConversationRepository)(nil)
	_ repository.BriefingRepository     = (*BriefingRepository)(nil)
	_ repository.AppointmentRepository  = (*AppointmentRepository)(nil)
	_ repository.OutboxRepository       = (*OutboxRepository)(nil)
)

// Transactor runs fn with a nil transaction unless Err is set.
type Transactor struct {
	Err   error
	Calls int
}

func (t *Transactor) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	t.Calls++
	if t.Err != nil {
		return t.Err
	}
	return fn(nil)
}

type PatientRepository struct{ mock.Mock }

func (m *PatientRepository) Create(ctx context.Context, tx sqlx.ExtContext, p *model.Patient) error {
	return m.Called(ctx, p).Error(0)
}

func (m *PatientRepository) Get(ctx context.Context, id string) (*model.Patient, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.Patient)
	return p, args.Error(1)
}

func (m *PatientRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *PatientRepository) List(ctx context.Context) ([]*model.PatientSummary, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]*model.PatientSummary)
	return out, args.Error(1)
}

func (m *PatientRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *PatientRepository) DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type EHRRepository struct{ mock.Mock }

func (m *EHRRepository) Create(ctx context.Context, tx sqlx.ExtContext, ehr *model.EHRHistory) error {
	return m.Called(ctx, ehr).Error(0)
}

func (m *EHRRepository) GetByPatient(ctx context.Context, patientID string) (*model.EHRHistory, error) {
	args := m.Called(ctx, patientID)
	e, _ := args.Get(0).(*model.EHRHistory)
	return e, args.Error(1)
}

func (m *EHRRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type NarrativeRepository struct{ mock.Mock }

func (m *NarrativeRepository) Create(ctx context.Context, tx sqlx.ExtContext, n *model.PatientNarrative) error {
	return m.Called(ctx, n).Error(0)
}

func (m *NarrativeRepository) ListByPatient(ctx context.Context, patientID string) ([]*model.PatientNarrative, error) {
	args := m.Called(ctx, patientID)
	out, _ := args.Get(0).([]*model.PatientNarrative)
	return out, args.Error(1)
}

func (m *NarrativeRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type ConversationRepository struct{ mock.Mock }

func (m *ConversationRepository) Create(ctx context.Context, conv *model.ChatConversation) error {
	return m.Called(ctx, conv).Error(0)
}

func (m *ConversationRepository) Get(ctx context.Context, id string) (*model.ChatConversation, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*model.ChatConversation)
	return c, args.Error(1)
}

func (m *ConversationRepository) AppendMessages(ctx context.Context, id string, expectedLen int, msgs model.Messages, complete bool) error {
	return m.Called(ctx, id, expectedLen, msgs, complete).Error(0)
}

func (m *ConversationRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *ConversationRepository) DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type BriefingRepository struct{ mock.Mock }

func (m *BriefingRepository) Create(ctx context.Context, tx sqlx.ExtContext, b *model.ClinicalBriefing) error {
	return m.Called(ctx, b).Error(0)
}

func (m *BriefingRepository) Get(ctx context.Context, id string) (*model.ClinicalBriefing, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*model.ClinicalBriefing)
	return b, args.Error(1)
}

func (m *BriefingRepository) LatestForPatient(ctx context.Context, patientID string) (*model.ClinicalBriefing, error) {
	args := m.Called(ctx, patientID)
	b, _ := args.Get(0).(*model.ClinicalBriefing)
	return b, args.Error(1)
}

func (m *BriefingRepository) GetByConversation(ctx context.Context, conversationID string) (*model.ClinicalBriefing, error) {
	args := m.Called(ctx, conversationID)
	b, _ := args.Get(0).(*model.ClinicalBriefing)
	return b, args.Error(1)
}

func (m *BriefingRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *BriefingRepository) DeleteAll(ctx context.Context, tx sqlx.ExtContext) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type AppointmentRepository struct{ mock.Mock }

func (m *AppointmentRepository) Create(ctx context.Context, tx sqlx.ExtContext, a *model.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *AppointmentRepository) Get(ctx context.Context, id string) (*model.Appointment, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*model.Appointment)
	return a, args.Error(1)
}

func (m *AppointmentRepository) Update(ctx context.Context, tx sqlx.ExtContext, a *model.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *AppointmentRepository) Delete(ctx context.Context, tx sqlx.ExtContext, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *AppointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	args := m.Called(ctx, filters)
	out, _ := args.Get(0).([]*model.Appointment)
	return out, args.Error(1)
}

func (m *AppointmentRepository) NextUpcoming(ctx context.Context, patientID string, now time.Time) (*model.Appointment, error) {
	args := m.Called(ctx, patientID, now)
	a, _ := args.Get(0).(*model.Appointment)
	return a, args.Error(1)
}

type OutboxRepository struct{ mock.Mock }

func (m *OutboxRepository) Create(ctx context.Context, tx sqlx.ExtContext, e *model.OutboxEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *OutboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, repository.OutboxBatch, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	batch, _ := args.Get(1).(repository.OutboxBatch)
	return events, batch, args.Error(2)
}

func (m *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type OutboxBatch struct{ mock.Mock }

func (m *OutboxBatch) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(id).Error(0)
}

func (m *OutboxBatch) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return m.Called(id, errMsg, retryAt).Error(0)
}

func (m *OutboxBatch) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return m.Called(id, errMsg).Error(0)
}

func (m *OutboxBatch) Commit() error   { return m.Called().Error(0) }
func (m *OutboxBatch) Rollback() error { return m.Called().Error(0) }
