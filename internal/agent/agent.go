// Package agent holds the six role prompts of the pipeline. Each agent is a
// stateless pair of a prompt builder and a response parser around one
// llm.Client call; none of them keeps state between calls.
package agent

import (
	"context"
	"time"

	"github.com/joescharf/forge/internal/llm"
)

// Role markers. Every system prompt opens with "You are a <role>", which is
// also what test doubles route on.
const (
	RoleAnalyst   = "requirements analyst"
	RoleDeveloper = "software developer"
	RoleReviewer  = "senior code reviewer"
	RoleWriter    = "technical documentation writer"
	RoleQA        = "QA engineer"
	RoleDevOps    = "DevOps engineer"
)

// Options are the per-call settings shared by all agents.
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Language    Language
}

func (o Options) request(system, user string) llm.Request {
	return llm.Request{
		System:      system,
		User:        user,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
		Timeout:     o.Timeout,
	}
}

func complete(ctx context.Context, c llm.Client, o Options, system, user string) (string, error) {
	return c.Complete(ctx, o.request(system, user))
}
