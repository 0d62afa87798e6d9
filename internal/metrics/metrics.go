package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicerelay_active_sessions",
		Help: "Number of connected client sessions",
	})
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicerelay_sessions_total",
		Help: "Total number of sessions opened",
	})
	DroppedDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicerelay_dropped_deliveries_total",
		Help: "Outbound messages dropped before reaching a client",
	}, []string{"reason"})
	RejectedRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicerelay_rejected_runs_total",
		Help: "Submissions rejected because the session queue was full",
	})

	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicerelay_pipeline_runs_total",
		Help: "Pipeline runs by entry path and outcome",
	}, []string{"path", "outcome"})
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicerelay_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
	}, []string{"stage"})
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicerelay_stage_failures_total",
		Help: "Pipeline failures by stage and failure kind",
	}, []string{"stage", "kind"})
)

// ObserveStage records the duration of a stage that started at start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
