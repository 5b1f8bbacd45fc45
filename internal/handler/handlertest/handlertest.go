// Package handlertest builds gin engines wired like the API router for
// handler tests.
package handlertest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/middleware"
)

var registerOnce sync.Once

// NewEngine returns an engine with request ids, error rendering and
// validation rendering installed.
func NewEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	registerOnce.Do(func() {
		if err := middleware.RegisterBindingValidators(); err != nil {
			panic(err)
		}
	})

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ErrorHandler(),
		middleware.Validation(),
	)
	return r
}

// Do serves one request. A non-empty body is sent as JSON.
func Do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// Error decodes an error body rendered by the middleware.
func Error(w *httptest.ResponseRecorder) middleware.ErrorResponse {
	var resp middleware.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}
