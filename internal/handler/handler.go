package handler

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/intake-api/pkg/errors"
)

const (
	ServiceName = "Amani Clinical Intake API"
	Version     = "1.0.0"
)

// Handler serves the unversioned system endpoints.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.HealthCheck)
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": ServiceName,
		"version": Version,
		"status":  "active",
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// BindJSON binds the request body into obj. On failure the error is pushed
// onto the context and false is returned; validator errors are left raw for
// the Validation middleware.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.Error(bindError(err))
		return false
	}
	return true
}

// BindQuery is BindJSON for query parameters.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.Error(bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var (
		verrs     validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		timeErr   *time.ParseError
		sizeErr   *http.MaxBytesError
	)
	switch {
	case stderrors.As(err, &verrs):
		return verrs
	case stderrors.Is(err, io.EOF):
		return errors.BadRequest("Request body is required", err)
	case stderrors.As(err, &syntaxErr), stderrors.Is(err, io.ErrUnexpectedEOF):
		return errors.BadRequest("Malformed JSON body", err)
	case stderrors.As(err, &typeErr):
		return errors.BadRequest("Invalid value for field "+typeErr.Field, err)
	case stderrors.As(err, &timeErr):
		return errors.BadRequest("Invalid date/time: use RFC 3339, e.g. 2024-06-01T14:30:00Z", err)
	case stderrors.As(err, &sizeErr):
		return errors.TooLarge("Request body too large", err)
	default:
		return errors.BadRequest("Invalid request: "+err.Error(), err)
	}
}
