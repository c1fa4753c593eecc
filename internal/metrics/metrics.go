// Package metrics provides Prometheus metrics for the scanner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "videoscanner"

var (
	// CyclesTotal counts finished cycles by result (ok, failed, interrupted).
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of ingestion cycles",
		},
		[]string{"result"},
	)

	// CycleDuration measures wall time of a cycle.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of ingestion cycles in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// ItemsTotal counts ingested items by outcome (auto_published, held, discarded, pending, duplicate).
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Total number of items by ingestion outcome",
		},
		[]string{"outcome"},
	)

	// QuotaUnitsTotal counts reserved API quota units by provider.
	QuotaUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_units_total",
			Help:      "API quota units reserved",
		},
		[]string{"provider"},
	)

	// ExternalErrorsTotal counts failed provider calls.
	ExternalErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_errors_total",
			Help:      "Total number of failed provider calls",
		},
		[]string{"provider", "error_type"},
	)

	// DispatchTotal counts notification attempts by mode (auto, manual, retry) and status.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of notification attempts",
		},
		[]string{"mode", "status"},
	)
)

// RecordCycle records a finished cycle.
func RecordCycle(result string, seconds float64) {
	CyclesTotal.WithLabelValues(result).Inc()
	CycleDuration.Observe(seconds)
}

// RecordItems adds n items with the given outcome.
func RecordItems(outcome string, n int) {
	if n <= 0 {
		return
	}
	ItemsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordQuota records reserved units.
func RecordQuota(provider string, units int) {
	if units <= 0 {
		return
	}
	QuotaUnitsTotal.WithLabelValues(provider).Add(float64(units))
}

// RecordExternalError records a failed provider call.
func RecordExternalError(provider, errorType string) {
	ExternalErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// RecordDispatch records a notification attempt.
func RecordDispatch(mode string, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	DispatchTotal.WithLabelValues(mode, status).Inc()
}
