// Package telemetry turns moodrank hook events into zap logs and prometheus
// metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moodrank"

// Metrics holds the rerank collectors.
type Metrics struct {
	reranks       *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	itemsReturned prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reranks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_total",
			Help:      "Rerank requests by the stage that produced the response.",
		}, []string{"stage"}),
		stageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Recovery stages that failed, by stage and error type.",
		}, []string{"stage", "type"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider calls by provider, attempt and outcome.",
		}, []string{"provider", "attempt", "outcome"}),
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"provider", "attempt"}),
		itemsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "items_returned",
			Help:      "Ranked items per response.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
}
