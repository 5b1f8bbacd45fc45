package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/intake-api/internal/handler/handlertest"
	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/errors"
)

type fakeIssuer struct{}

func (fakeIssuer) IssueToken(ctx context.Context, req *model.TokenRequest) (*model.TokenResponse, error) {
	if req.ClientSecret != "dashboard-secret" {
		return nil, errors.Unauthorized(model.ErrInvalidCredentials)
	}
	return &model.TokenResponse{AccessToken: "jwt", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func TestToken(t *testing.T) {
	r := handlertest.NewEngine()
	NewHandler(fakeIssuer{}).RegisterRoutes(r.Group("/api"))

	w := handlertest.Do(r, http.MethodPost, "/api/auth/token", `{"client_id":"dashboard","client_secret":"dashboard-secret"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"access_token":"jwt","token_type":"Bearer","expires_in":3600}`, w.Body.String())

	w = handlertest.Do(r, http.MethodPost, "/api/auth/token", `{"client_id":"dashboard","client_secret":"wrong-secret"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = handlertest.Do(r, http.MethodPost, "/api/auth/token", `{"client_id":"dashboard"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
