// Package metrics exposes Prometheus instrumentation for apply runs. Metrics
// are opt-in: nothing is registered until Init is called, and the record
// helpers are no-ops before that.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resourcesTotal   *prometheus.CounterVec
	resourceDuration *prometheus.HistogramVec
	applyRunsTotal   *prometheus.CounterVec
	applyDuration    prometheus.Histogram

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Init registers all Prometheus metrics. Call once at startup when metrics
// exposition is enabled.
func Init() {
	metricsOnce.Do(func() {
		resourcesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultops_resources_total",
				Help: "Total number of reconciled resources by terminal phase",
			},
			[]string{"kind", "action", "phase"},
		)

		resourceDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vaultops_resource_duration_seconds",
				Help:    "Time from dispatch eligibility to terminal state per resource",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"kind"},
		)

		applyRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultops_apply_runs_total",
				Help: "Total number of apply runs by outcome",
			},
			[]string{"outcome"},
		)

		applyDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vaultops_apply_duration_seconds",
				Help:    "Duration of whole apply runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		)

		metricsRegistered = true
	})
}

// RecordResource records one resource reaching a terminal state.
func RecordResource(kind, action, phase string, elapsed time.Duration) {
	if !metricsRegistered {
		return
	}
	resourcesTotal.WithLabelValues(kind, action, phase).Inc()
	resourceDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordApply records a completed apply run.
func RecordApply(failed int, elapsed time.Duration) {
	if !metricsRegistered {
		return
	}
	outcome := "succeeded"
	if failed > 0 {
		outcome = "failed"
	}
	applyRunsTotal.WithLabelValues(outcome).Inc()
	applyDuration.Observe(elapsed.Seconds())
}
