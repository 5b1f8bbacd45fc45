package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/handler"
	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/errors"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	NextUpcoming(ctx context.Context, patientID string) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, req *model.UpdateAppointmentRequest) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

type Handler struct {
	service AppointmentService
}

func NewHandler(service AppointmentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/next/upcoming", h.NextUpcoming)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
}

type listQuery struct {
	PatientID string `form:"patient_id"`
	Status    string `form:"status"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.CreateAppointment(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	var q listQuery
	if !handler.BindQuery(c, &q) {
		return
	}

	filters := &model.AppointmentFilters{
		PatientID: q.PatientID,
		Status:    model.AppointmentStatus(q.Status),
	}
	var err error
	if filters.StartDate, err = parseDate("start_date", q.StartDate); err != nil {
		c.Error(err)
		return
	}
	if filters.EndDate, err = parseDate("end_date", q.EndDate); err != nil {
		c.Error(err)
		return
	}

	appointments, err := h.service.ListAppointments(c.Request.Context(), filters)
	if err != nil {
		c.Error(err)
		return
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	c.JSON(http.StatusOK, appointments)
}

// NextUpcoming answers null when nothing is scheduled.
func (h *Handler) NextUpcoming(c *gin.Context) {
	apt, err := h.service.NextUpcoming(c.Request.Context(), c.Query("patient_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	apt, err := h.service.GetAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, apt)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.UpdateAppointment(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	if err := h.service.DeleteAppointment(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC
// midnight). An empty value means no bound.
func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return nil, errors.BadRequest("Invalid "+field+": use RFC 3339 or YYYY-MM-DD", err)
	}
	return &t, nil
}
