// Package llm provides the single model-call primitive used by every agent,
// its provider implementations, and the middleware that decorates it.
package llm

import (
	"context"
	"time"
)

// Request is one completion call: a system prompt, a user prompt and the
// sampling/transport knobs that apply to it.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client is implemented by every provider and every middleware.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens = 4096

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
