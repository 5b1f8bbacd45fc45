package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/pkg/metrics"
)

func newTestClient(url string, retries int) *AnthropicClient {
	c := NewAnthropicClient(Config{
		BaseURL:    url,
		APIKey:     "test-key",
		Model:      "claude-test",
		MaxRetries: retries,
	}, metrics.New("test"), nil)
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestCompleteSendsMessagesRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body.Model)
		assert.Equal(t, 500, body.MaxTokens)
		assert.Equal(t, "be kind", body.System)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, RoleAssistant, body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"Hello "},{"type":"tool_use"},{"type":"text","text":"there"}],
			"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":3}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, 0).Complete(context.Background(), Request{
		Operation: "chat",
		System:    "be kind",
		Messages: []Message{
			{Role: RoleAssistant, Content: "Hi"},
			{Role: RoleUser, Content: "My knee hurts"},
		},
		MaxTokens:   500,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Text)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, "end_turn", resp.StopReason)
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(529)
			w.Write([]byte(`{"error":{"type":"overloaded_error","message":"Overloaded"}}`))
		default:
			w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
		}
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL, 3).Complete(context.Background(), Request{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Complete(context.Background(), Request{MaxTokens: 10})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
	assert.Contains(t, err.Error(), "max_tokens too large")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Complete(context.Background(), Request{MaxTokens: 10})
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCompleteWithoutKey(t *testing.T) {
	c := NewAnthropicClient(Config{}, nil, nil)
	assert.False(t, c.Configured())
	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCompleteEmptyContentIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Complete(context.Background(), Request{MaxTokens: 10})
	assert.ErrorIs(t, err, errBadResponse)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
