// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/joescharf/forge/internal/llm"
)

// Response is one scripted reply: text or an error.
type Response struct {
	Text string
	Err  error
}

// Reply returns a successful scripted response.
func Reply(text string) Response { return Response{Text: text} }

// Fail returns a failing scripted response.
func Fail(err error) Response { return Response{Err: err} }

type route struct {
	match string
	queue []Response
}

// Client routes each request to the first route whose match string occurs in
// the system prompt and pops the next response from that route's queue. The
// last response of a queue repeats once the queue is drained.
type Client struct {
	mu     sync.Mutex
	routes []*route
	calls  []llm.Request
}

// New creates an empty scripted client.
func New() *Client { return &Client{} }

// On appends responses for requests whose system prompt contains match.
func (c *Client) On(match string, responses ...Response) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.routes {
		if r.match == match {
			r.queue = append(r.queue, responses...)
			return c
		}
	}
	c.routes = append(c.routes, &route{match: match, queue: responses})
	return c
}

func (c *Client) Name() string { return "scripted" }

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)

	for _, r := range c.routes {
		if !strings.Contains(req.System, r.match) {
			continue
		}
		if len(r.queue) == 0 {
			return "", fmt.Errorf("llmtest: no responses scripted for %q", r.match)
		}
		resp := r.queue[0]
		if len(r.queue) > 1 {
			r.queue = r.queue[1:]
		}
		return resp.Text, resp.Err
	}
	return "", fmt.Errorf("llmtest: no route for system prompt %.60q", req.System)
}

// Calls returns every request received so far.
func (c *Client) Calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallsMatching returns the requests whose system prompt contains match.
func (c *Client) CallsMatching(match string) []llm.Request {
	var out []llm.Request
	for _, req := range c.Calls() {
		if strings.Contains(req.System, match) {
			out = append(out, req)
		}
	}
	return out
}
