package patient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/errors"
)

type PatientService interface {
	ListPatients(ctx context.Context) ([]*model.PatientSummary, error)
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	GetEHR(ctx context.Context, patientID string) (*model.EHRRecord, error)
	ListNarratives(ctx context.Context, patientID string) ([]*model.PatientNarrative, error)
	LatestBriefing(ctx context.Context, patientID string) (*model.ClinicalBriefing, error)
}

type AppointmentLister interface {
	ListPatientAppointments(ctx context.Context, patientID string, status model.AppointmentStatus, upcomingOnly bool) ([]*model.Appointment, error)
}

type Handler struct {
	service      PatientService
	appointments AppointmentLister
}

func NewHandler(service PatientService, appointments AppointmentLister) *Handler {
	return &Handler{
		service:      service,
		appointments: appointments,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.GET("/:id/narratives", h.ListNarratives)
		patients.GET("/:id/briefing", h.GetBriefing)
		patients.GET("/:id/ehr", h.GetEHR)
		patients.GET("/:id/appointments", h.ListAppointments)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.service.ListPatients(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	if patients == nil {
		patients = []*model.PatientSummary{}
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListNarratives(c *gin.Context) {
	narratives, err := h.service.ListNarratives(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	if narratives == nil {
		narratives = []*model.PatientNarrative{}
	}
	c.JSON(http.StatusOK, narratives)
}

func (h *Handler) GetBriefing(c *gin.Context) {
	b, err := h.service.LatestBriefing(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetEHR(c *gin.Context) {
	ehr, err := h.service.GetEHR(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ehr)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	upcomingOnly := false
	if raw := c.Query("upcoming_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(errors.BadRequest("upcoming_only must be true or false", err))
			return
		}
		upcomingOnly = v
	}

	appointments, err := h.appointments.ListPatientAppointments(
		c.Request.Context(),
		c.Param("id"),
		model.AppointmentStatus(c.Query("status")),
		upcomingOnly,
	)
	if err != nil {
		c.Error(err)
		return
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	c.JSON(http.StatusOK, appointments)
}
