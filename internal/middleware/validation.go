package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/jwalitptl/intake-api/pkg/validator"
)

// ValidationResponse is the 400 body for requests that fail binding rules.
type ValidationResponse struct {
	Code    int                       `json:"code"`
	Message string                    `json:"message"`
	Errors  []pkgvalidator.FieldError `json:"errors"`
	TraceID string                    `json:"trace_id,omitempty"`
}

// RegisterBindingValidators installs the custom tags and json field naming on
// gin's validator engine.
func RegisterBindingValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return stderrors.New("unexpected binding validator engine")
	}
	return pkgvalidator.Register(v)
}

// Validation renders validator errors pushed by handlers as a 400 with one
// message per field.
func Validation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		var fields []pkgvalidator.FieldError
		for _, e := range c.Errors {
			var verrs validator.ValidationErrors
			if stderrors.As(e.Err, &verrs) {
				fields = append(fields, pkgvalidator.Fields(verrs)...)
			}
		}
		if len(fields) == 0 || c.Writer.Written() {
			return
		}

		c.AbortWithStatusJSON(http.StatusBadRequest, ValidationResponse{
			Code:    http.StatusBadRequest,
			Message: "Validation failed",
			Errors:  fields,
			TraceID: c.GetString(ContextRequestID),
		})
	}
}
