package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/pkg/metrics"
)

// Recovery turns a handler panic into a 500 carrying the trace id. m may be
// nil.
func Recovery(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			path := c.FullPath()
			if path == "" {
				path = "unmatched"
			}
			if m != nil {
				m.PanicsRecovered.WithLabelValues(c.Request.Method, path).Inc()
			}

			traceID := c.GetString(ContextRequestID)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", c.Request.Method).
				Str("path", path).
				Str("trace_id", traceID).
				Msg("Recovered from panic")

			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Code:    http.StatusInternalServerError,
				Message: "Internal server error",
				TraceID: traceID,
			})
		}()
		c.Next()
	}
}
