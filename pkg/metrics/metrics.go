package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluatorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharma_evaluator_runs_total",
		Help: "Evaluation runs by outcome (completed, skipped_lock, error).",
	}, []string{"outcome"})

	AlertsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharma_alerts_created_total",
		Help: "Alerts created by the evaluator.",
	})

	AlertsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharma_alerts_resolved_total",
		Help: "Alerts resolved via the lifecycle manager, by resolution.",
	}, []string{"resolution"})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharma_dispatches_total",
		Help: "Notification dispatch attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pharma_evaluation_duration_seconds",
		Help:    "Wall time of a single tenant evaluation run.",
		Buckets: prometheus.DefBuckets,
	})
)
