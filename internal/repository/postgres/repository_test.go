package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

func newMockBase(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBaseRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPatientRepository_ListIncludesBriefingStatus(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewPatientRepository(base)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"patient_id", "full_name", "date_of_birth", "gender_identity", "race",
		"address_zip_code", "created_at", "updated_at", "briefing_status",
	}).
		AddRow("P001", "Maria Garcia", time.Date(1970, 5, 1, 0, 0, 0, 0, time.UTC), "Female", "Hispanic", "10001", now, now, "Briefing Ready").
		AddRow("P002", "James Lee", time.Date(1985, 9, 12, 0, 0, 0, 0, time.UTC), "Male", "Asian", "94110", now, now, "Pending Intake")

	mock.ExpectQuery(regexp.QuoteMeta("FROM patients p")).
		WithArgs("Briefing Ready", "Pending Intake").
		WillReturnRows(rows)

	patients, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, patients, 2)
	assert.Equal(t, model.BriefingStatusReady, patients[0].BriefingStatus)
	assert.Equal(t, "1970-05-01", patients[0].DateOfBirth.String())
	assert.Equal(t, model.BriefingStatusPending, patients[1].BriefingStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_GetNotFound(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewPatientRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("FROM patients WHERE patient_id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEHRRepository_GetByPatientDecodesJSON(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewEHRRepository(base)

	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "problem_list", "medication_list", "recent_labs",
		"surgical_history", "allergies", "social_history", "family_history", "vital_signs",
	}).AddRow(
		"EHR-ABCD1234", "P001",
		[]byte(`[{"condition":"Type 2 Diabetes","icd10":"E11.9"}]`),
		[]byte(`["Metformin 500mg"]`),
		[]byte(`[{"test":"HbA1c","value":"7.8","date":"2024-02-01"}]`),
		nil, nil,
		[]byte(`{"tobacco":"never"}`),
		nil,
		[]byte(`{"heart_rate":72,"temperature":98.6}`),
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM ehr_histories")).WithArgs("P001").WillReturnRows(rows)

	ehr, err := repo.GetByPatient(context.Background(), "P001")
	require.NoError(t, err)
	assert.Equal(t, []string{"Type 2 Diabetes"}, ehr.Conditions())
	assert.Equal(t, []string{"Metformin 500mg"}, ehr.Medications())
	require.NotNil(t, ehr.SocialHistory)
	assert.Equal(t, "never", ehr.SocialHistory.Tobacco)
	require.NotNil(t, ehr.VitalSigns)
	assert.Equal(t, 72, *ehr.VitalSigns.HeartRate)
	assert.Nil(t, ehr.Allergies)
}

func TestConversationRepository_AppendMessages(t *testing.T) {
	msgs := model.Messages{
		{Role: model.RoleUser, Content: "I have a headache"},
		{Role: model.RoleAI, Content: "How long has it lasted?"},
	}

	t.Run("applies when length matches", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewConversationRepository(base)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_conversations")).
			WithArgs(sqlmock.AnyArg(), false, "CONVO-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.AppendMessages(context.Background(), "CONVO-1", 1, msgs, false))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict when row changed", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewConversationRepository(base)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_conversations")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs("CONVO-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := repo.AppendMessages(context.Background(), "CONVO-1", 1, msgs, true)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("not found when missing", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewConversationRepository(base)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_conversations")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.AppendMessages(context.Background(), "CONVO-X", 1, msgs, false)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestAppointmentRepository_ListBuildsFilters(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND patient_id = $1 AND appointment_status = $2 AND appointment_date_time >= $3 ORDER BY appointment_date_time ASC")).
		WithArgs("P001", model.AppointmentStatusScheduled, start).
		WillReturnRows(sqlmock.NewRows([]string{"appointment_id"}))

	list, err := repo.List(context.Background(), &model.AppointmentFilters{
		PatientID: "P001",
		Status:    model.AppointmentStatusScheduled,
		StartDate: &start,
	})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_NextUpcomingNone(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("AND appointment_date_time >= $1 AND appointment_status = $2 ORDER BY appointment_date_time ASC LIMIT 1")).
		WithArgs(now, model.AppointmentStatusScheduled).
		WillReturnRows(sqlmock.NewRows([]string{"appointment_id"}))

	_, err := repo.NextUpcoming(context.Background(), "", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_NextUpcomingFetchesOneRow(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)
	now := time.Now()
	at := now.Add(48 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND patient_id = $1 AND appointment_date_time >= $2 AND appointment_status = $3 ORDER BY appointment_date_time ASC LIMIT 1")).
		WithArgs("P001", now, model.AppointmentStatusScheduled).
		WillReturnRows(sqlmock.NewRows([]string{"appointment_id", "patient_id", "appointment_date_time", "appointment_status"}).
			AddRow("APT-1", "P001", at, "scheduled"))

	apt, err := repo.NextUpcoming(context.Background(), "P001", now)
	require.NoError(t, err)
	assert.Equal(t, "APT-1", apt.ID)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_DeleteMissing(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments")).
		WithArgs("APT-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), nil, "APT-1"), repository.ErrNotFound)
}

func TestBriefingRepository_CreateDuplicateConversation(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewBriefingRepository(base)
	convID := "CONVO-1"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO briefings")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), nil, &model.ClinicalBriefing{
		ID:             "BRIEF-1",
		PatientID:      "P001",
		ConversationID: &convID,
		AISummary:      "summary",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseRepository_WithTxRollsBackOnError(t *testing.T) {
	base, mock := newMockBase(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := base.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimAndMark(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewOutboxRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload", "status"}).
			AddRow("7f1c7b8e-1b9a-4c55-9d6f-2b1f3e0c9a11", model.EventBriefingCreated, []byte(`{"briefing_id":"BRIEF-1"}`), "pending"))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'processed'")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	events, batch, err := repo.GetPendingEventsWithLock(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	require.NoError(t, batch.MarkProcessed(context.Background(), events[0].ID))
	require.NoError(t, batch.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
