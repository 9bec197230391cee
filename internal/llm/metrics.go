package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_llm_requests_total",
		Help: "Model calls by provider and outcome class",
	}, []string{"provider", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forge_llm_request_duration_seconds",
		Help:    "Model call latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
	}, []string{"provider"})
)

// Metrics records a counter and a latency histogram per call.
func Metrics() Middleware {
	return func(next Client) Client {
		return &metered{next: next}
	}
}

type metered struct {
	next Client
}

func (m *metered) Name() string { return m.next.Name() }

func (m *metered) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := m.next.Complete(ctx, req)
	requestDuration.WithLabelValues(m.next.Name()).Observe(time.Since(start).Seconds())
	requestTotal.WithLabelValues(m.next.Name(), Class(err)).Inc()
	return out, err
}
