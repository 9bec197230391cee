package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order:
// Wrap(inner, A, B) == A(B(inner)).
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// Timeout bounds each call by req.Timeout, or by fallback when the request
// does not set one. A zero duration disables the bound.
func Timeout(fallback time.Duration) Middleware {
	return func(next Client) Client {
		return &timeoutClient{next: next, fallback: fallback}
	}
}

type timeoutClient struct {
	next     Client
	fallback time.Duration
}

func (t *timeoutClient) Name() string { return t.next.Name() }

func (t *timeoutClient) Complete(ctx context.Context, req Request) (string, error) {
	d := req.Timeout
	if d <= 0 {
		d = t.fallback
	}
	if d <= 0 {
		return t.next.Complete(ctx, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	out, err := t.next.Complete(callCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return "", &Error{Kind: ErrTimeout, Provider: t.next.Name(), Err: err}
	}
	return out, err
}

// Logging logs every call with its duration and error class.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Client) Client {
		return &loggingClient{next: next, log: logger}
	}
}

type loggingClient struct {
	next Client
	log  *slog.Logger
}

func (l *loggingClient) Name() string { return l.next.Name() }

func (l *loggingClient) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := l.next.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		l.log.Warn("model call failed",
			"client", l.next.Name(),
			"duration", elapsed,
			"class", Class(err),
			"error", err,
		)
		return "", err
	}
	l.log.Debug("model call",
		"client", l.next.Name(),
		"duration", elapsed,
		"prompt_bytes", len(req.System)+len(req.User),
		"response_bytes", len(out),
	)
	return out, nil
}
