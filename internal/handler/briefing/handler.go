package briefing

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/handler"
	"github.com/jwalitptl/intake-api/internal/model"
)

type BriefingService interface {
	SynthesizeFromNarrative(ctx context.Context, req *model.SynthesizeRequest) (*model.ClinicalBriefing, error)
	GetBriefing(ctx context.Context, id string) (*model.ClinicalBriefing, error)
}

type Handler struct {
	service BriefingService
}

func NewHandler(service BriefingService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/synthesize", h.Synthesize)
	r.GET("/briefings/:id", h.GetBriefing)
}

func (h *Handler) Synthesize(c *gin.Context) {
	var req model.SynthesizeRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	b, err := h.service.SynthesizeFromNarrative(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBriefing(c *gin.Context) {
	b, err := h.service.GetBriefing(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}
