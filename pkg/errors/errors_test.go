package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorStatusCode(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{NotFound("Patient", nil), http.StatusNotFound},
		{BadRequest("bad", nil), http.StatusBadRequest},
		{Unauthorized(nil), http.StatusUnauthorized},
		{Conflict("busy", nil), http.StatusConflict},
		{Upstream("model down", nil), http.StatusBadGateway},
		{TooLarge("too big", nil), http.StatusRequestEntityTooLarge},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.StatusCode(), tc.err.Message)
	}
}

func TestAppErrorMessageHidesCause(t *testing.T) {
	cause := fmt.Errorf("pq: connection refused")
	err := NotFound("Patient", cause)

	assert.Equal(t, "Patient not found", err.Error())
	assert.Equal(t, "Patient not found: pq: connection refused", err.Cause())
	assert.ErrorIs(t, err, cause)
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Conflict("changed", nil))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrConflict, appErr.Code)
	assert.True(t, HasCode(wrapped, ErrConflict))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrConflict))
}
