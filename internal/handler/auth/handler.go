package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/handler"
	"github.com/jwalitptl/intake-api/internal/model"
)

type TokenIssuer interface {
	IssueToken(ctx context.Context, req *model.TokenRequest) (*model.TokenResponse, error)
}

type Handler struct {
	svc TokenIssuer
}

func NewHandler(svc TokenIssuer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/token", h.Token)
}

// Token exchanges client credentials for a bearer token.
func (h *Handler) Token(c *gin.Context) {
	var req model.TokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.IssueToken(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
