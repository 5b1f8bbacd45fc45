package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/handler/handlertest"
	"github.com/jwalitptl/intake-api/internal/middleware"
	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/errors"
)

type fakeService struct {
	created *model.CreateAppointmentRequest
	filters *model.AppointmentFilters
	next    *model.Appointment
}

func (f *fakeService) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	f.created = req
	return &model.Appointment{ID: "APT-1", PatientID: req.PatientID, DateTime: req.DateTime, Status: model.AppointmentStatusScheduled, DurationMinutes: 30}, nil
}

func (f *fakeService) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	return nil, errors.NotFoundMsg("Appointment not found", repository.ErrNotFound)
}

func (f *fakeService) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	f.filters = filters
	return nil, nil
}

func (f *fakeService) NextUpcoming(ctx context.Context, patientID string) (*model.Appointment, error) {
	return f.next, nil
}

func (f *fakeService) UpdateAppointment(ctx context.Context, id string, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt := &model.Appointment{ID: id, Status: model.AppointmentStatusScheduled}
	req.Apply(apt)
	return apt, nil
}

func (f *fakeService) DeleteAppointment(ctx context.Context, id string) error {
	if id != "APT-1" {
		return errors.NotFoundMsg("Appointment not found", repository.ErrNotFound)
	}
	return nil
}

func newTestRouter() (*fakeService, http.Handler) {
	svc := &fakeService{}
	r := handlertest.NewEngine()
	NewHandler(svc).RegisterRoutes(r.Group("/api"))
	return svc, r
}

func TestCreateAppointment(t *testing.T) {
	svc, r := newTestRouter()

	w := handlertest.Do(r, http.MethodPost, "/api/appointments",
		`{"patient_id":"P001","appointment_date_time":"2024-07-01T14:30:00Z","appointment_type":"Follow-up"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Follow-up", *svc.created.AppointmentType)
	assert.Equal(t, time.Date(2024, 7, 1, 14, 30, 0, 0, time.UTC), svc.created.DateTime.UTC())

	var apt model.Appointment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apt))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
}

func TestCreateAppointmentValidation(t *testing.T) {
	_, r := newTestRouter()

	w := handlertest.Do(r, http.MethodPost, "/api/appointments",
		`{"appointment_date_time":"2024-07-01T14:30:00Z","duration_minutes":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp middleware.ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	fields := map[string]string{}
	for _, f := range resp.Errors {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "field is required", fields["patient_id"])
	assert.Equal(t, "must be at least 5", fields["duration_minutes"])
}

func TestCreateAppointmentBadDate(t *testing.T) {
	_, r := newTestRouter()

	w := handlertest.Do(r, http.MethodPost, "/api/appointments", `{"patient_id":"P001","appointment_date_time":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAppointmentsDateFilters(t *testing.T) {
	svc, r := newTestRouter()

	w := handlertest.Do(r, http.MethodGet, "/api/appointments?patient_id=P001&start_date=2024-06-01&end_date=2024-06-30T23:59:59Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, "P001", svc.filters.PatientID)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *svc.filters.StartDate)
	assert.Equal(t, time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC), svc.filters.EndDate.UTC())

	w = handlertest.Do(r, http.MethodGet, "/api/appointments?start_date=06/01/2024", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, handlertest.Error(w).Message, "start_date")
}

func TestNextUpcomingNull(t *testing.T) {
	svc, r := newTestRouter()

	w := handlertest.Do(r, http.MethodGet, "/api/appointments/next/upcoming", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())

	svc.next = &model.Appointment{ID: "APT-9"}
	w = handlertest.Do(r, http.MethodGet, "/api/appointments/next/upcoming?patient_id=P001", "")
	assert.Contains(t, w.Body.String(), `"appointment_id":"APT-9"`)
}

func TestGetAppointmentNotFound(t *testing.T) {
	_, r := newTestRouter()

	w := handlertest.Do(r, http.MethodGet, "/api/appointments/APT-X", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Appointment not found", handlertest.Error(w).Message)
}

func TestUpdateAppointmentRejectsUnknownStatus(t *testing.T) {
	_, r := newTestRouter()

	w := handlertest.Do(r, http.MethodPut, "/api/appointments/APT-1", `{"appointment_status":"postponed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = handlertest.Do(r, http.MethodPut, "/api/appointments/APT-1", `{"appointment_status":"confirmed"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"appointment_status":"confirmed"`)
}

func TestDeleteAppointment(t *testing.T) {
	_, r := newTestRouter()

	w := handlertest.Do(r, http.MethodDelete, "/api/appointments/APT-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = handlertest.Do(r, http.MethodDelete, "/api/appointments/APT-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
