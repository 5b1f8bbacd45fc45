package chat

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/handler"
	"github.com/jwalitptl/intake-api/internal/model"
)

type ChatService interface {
	StartConversation(ctx context.Context, patientID string) (*model.StartChatResponse, error)
	ContinueConversation(ctx context.Context, req *model.ContinueChatRequest) (*model.ContinueChatResponse, error)
	GetConversation(ctx context.Context, id string) (*model.ConversationView, error)
	RetrySynthesis(ctx context.Context, id string) (*model.ClinicalBriefing, bool, error)
}

type Handler struct {
	service ChatService
}

func NewHandler(service ChatService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	chat := r.Group("/chat")
	{
		chat.POST("/start", h.Start)
		chat.POST("/continue", h.Continue)
		chat.GET("/:conversation_id", h.Get)
		chat.POST("/:conversation_id/synthesize", h.Synthesize)
	}
}

func (h *Handler) Start(c *gin.Context) {
	var req model.StartChatRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.StartConversation(c.Request.Context(), req.PatientID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Continue(c *gin.Context) {
	var req model.ContinueChatRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.ContinueConversation(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Get(c *gin.Context) {
	conv, err := h.service.GetConversation(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Synthesize creates the briefing for a completed conversation, or returns
// the existing one with 200.
func (h *Handler) Synthesize(c *gin.Context) {
	b, created, err := h.service.RetrySynthesis(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		c.Error(err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, b)
}
