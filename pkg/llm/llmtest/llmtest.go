// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/jwalitptl/intake-api/pkg/llm"
)

// Client answers with Replies in order and then repeats the last one.
// When Err is set every call fails with it.
type Client struct {
	Replies []string
	Err     error

	mu       sync.Mutex
	requests []llm.Request
}

func New(replies ...string) *Client {
	return &Client{Replies: replies}
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i := len(c.requests) - 1
	if i >= len(c.Replies) {
		i = len(c.Replies) - 1
	}
	text := ""
	if i >= 0 {
		text = c.Replies[i]
	}
	return &llm.Response{Text: text, StopReason: "end_turn"}, nil
}

// Requests returns a copy of every request received so far.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

var _ llm.Client = (*Client)(nil)
