// Package metrics registers the Prometheus collectors of the API. Every
// Observe/Inc helper is safe to call before Init, which is how services
// behave in tests.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const metricPrefix = "minhasfinancas_"

// Export results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Cascade directions.
const (
	DirectionPaid   = "paid"
	DirectionUnpaid = "unpaid"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	obligationsGenerated *prometheus.CounterVec

	statementsConfirmed prometheus.Counter
	statementsReverted  prometheus.Counter

	cascadeTotal       *prometheus.CounterVec
	cascadeObligations *prometheus.HistogramVec

	statementExportTotal   *prometheus.CounterVec
	statementExportLatency *prometheus.HistogramVec
)

// Init registers the collectors on the default registry. db may be nil;
// when set, gauges over pending statements and overdue obligations are added.
func Init(db *gorm.DB) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		obligationsGenerated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "obligations_generated_total",
				Help: "Obligations created by the series generator, by mode",
			},
			[]string{"mode"},
		)

		statementsConfirmed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "statements_confirmed_total",
				Help: "Total statements confirmed",
			},
		)
		statementsReverted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "statements_reverted_total",
				Help: "Total confirmed statements reverted to pending",
			},
		)

		cascadeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_cascade_total",
				Help: "Total settlement cascades by direction",
			},
			[]string{"direction"},
		)
		cascadeObligations = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_cascade_obligations",
				Help:    "Purchases touched by one settlement cascade",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"direction"},
		)

		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total statement export operations by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			obligationsGenerated,
			statementsConfirmed,
			statementsReverted,
			cascadeTotal,
			cascadeObligations,
			statementExportTotal,
			statementExportLatency,
		)

		if db != nil {
			registerDBMetrics(db)
		}
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// AddObligationsGenerated counts records produced by the series generator.
func AddObligationsGenerated(mode string, count int) {
	if count <= 0 {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	if obligationsGenerated != nil {
		obligationsGenerated.WithLabelValues(mode).Add(float64(count))
	}
}

// IncStatementConfirmed increments the confirmation counter.
func IncStatementConfirmed() {
	if statementsConfirmed != nil {
		statementsConfirmed.Inc()
	}
}

// IncStatementReverted increments the reversal counter.
func IncStatementReverted() {
	if statementsReverted != nil {
		statementsReverted.Inc()
	}
}

// ObserveCascade records a settlement cascade and how many purchases it touched.
func ObserveCascade(direction string, touched int) {
	if cascadeTotal != nil {
		cascadeTotal.WithLabelValues(direction).Inc()
	}
	if cascadeObligations != nil {
		cascadeObligations.WithLabelValues(direction).Observe(float64(touched))
	}
}

// ObserveStatementExport records export latency and result.
func ObserveStatementExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportLatency != nil {
		statementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
