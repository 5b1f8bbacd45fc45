package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = errors.New("model API key not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	// Operation labels metrics and logs, e.g. "chat" or "synthesis".
	Operation   string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Client produces a completion for a conversation.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// APIError is a non-2xx answer from the model API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("model API returned %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("model API returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode == 529 || e.StatusCode >= 500
}
