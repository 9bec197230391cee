package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("forge.pipeline")

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_pipeline_runs_total",
		Help: "Pipeline runs by outcome (approved, iteration_cap, failed)",
	}, []string{"outcome"})

	reviewIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_review_iterations",
		Help:    "Review iterations per completed run",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	stageDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_stage_degradations_total",
		Help: "Parse fallbacks by stage",
	}, []string{"stage"})
)
