package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		c.Error(errors.NotFoundMsg("Patient not found", stderrors.New("no rows")))
	})
	r.GET("/plain", func(c *gin.Context) {
		c.Error(stderrors.New("pq: connection refused"))
	})
	r.GET("/written", func(c *gin.Context) {
		c.Error(stderrors.New("late"))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.Header.Set(HeaderXRequestID, "req-1")
	w := serve(r, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"message":"Patient not found","trace_id":"req-1"}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Internal server error"`)
	assert.NotContains(t, w.Body.String(), "pq:")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestValidation(t *testing.T) {
	require.NoError(t, RegisterBindingValidators())

	r := gin.New()
	r.Use(ErrorHandler(), Validation())
	r.POST("/token", func(c *gin.Context) {
		var req model.TokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"client_secret":"short"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Validation failed", resp.Message)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "client_id", resp.Errors[0].Field)
	assert.Equal(t, "client_secret", resp.Errors[1].Field)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	config := DefaultCORSConfig()
	config.AllowOrigins = []string{"https://dashboard.example.com"}
	r.Use(CORS(config))
	r.GET("/api/patients", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/patients", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://dashboard.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/api/patients", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2}).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))
}

type stubValidator struct{}

func (stubValidator) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	if token != "good" {
		return nil, model.ErrInvalidToken
	}
	return &model.TokenClaims{ClientID: "dashboard"}, nil
}

func TestAuthenticate(t *testing.T) {
	r := gin.New()
	r.Use(NewAuthMiddleware(stubValidator{}, "/api/auth/token").Authenticate())
	r.POST("/api/auth/token", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/patients", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextClientID)) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/auth/token", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	for header, status := range map[string]int{
		"Basic abc":   http.StatusUnauthorized,
		"Bearer bad":  http.StatusUnauthorized,
		"bearer good": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
		req.Header.Set("Authorization", header)
		w = serve(r, req)
		assert.Equal(t, status, w.Code, header)
	}
	assert.Equal(t, "dashboard", w.Body.String())
}

func TestTimeoutSelectsDuration(t *testing.T) {
	config := DefaultTimeoutConfig()
	r := gin.New()
	r.Use(Timeout(config))
	remaining := func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		require.True(t, ok)
		c.String(http.StatusOK, time.Until(deadline).Round(time.Second).String())
	}
	r.GET("/api/patients", remaining)
	r.POST("/api/chat/continue", remaining)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	assert.Equal(t, "30s", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodPost, "/api/chat/continue", nil))
	assert.Equal(t, "2m0s", w.Body.String())
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	config := DefaultSizeLimitConfig()
	config.MaxBodySize = 16
	r.Use(SizeLimit(config))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 17))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
}

func TestRecovery(t *testing.T) {
	m := metrics.New("test")
	r := gin.New()
	r.Use(RequestID(), Recovery(m))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderXRequestID, "trace-7")
	w := serve(r, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "trace-7", w.Header().Get(HeaderXRequestID))
	assert.JSONEq(t, `{"code":500,"message":"Internal server error","trace_id":"trace-7"}`, w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PanicsRecovered.WithLabelValues(http.MethodGet, "/boom")))
}

func TestRecoveryWithoutMetrics(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(nil))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	for name, tc := range map[string]struct {
		header string
		keep   bool
	}{
		"missing":      {header: "", keep: false},
		"client token": {header: "web-3f2a.9:1", keep: true},
		"too long":     {header: strings.Repeat("a", 65), keep: false},
		"spaces":       {header: "abc def", keep: false},
		"control char": {header: "abc\x1bdef", keep: false},
		"quote":        {header: `abc"def`, keep: false},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header[HeaderXRequestID] = []string{tc.header}
			w := serve(r, req)

			rid := w.Header().Get(HeaderXRequestID)
			assert.Equal(t, rid, w.Body.String())
			if tc.keep {
				assert.Equal(t, tc.header, rid)
				return
			}
			_, err := uuid.Parse(rid)
			assert.NoError(t, err)
		})
	}
}
