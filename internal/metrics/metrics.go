// Package metrics holds the Prometheus collectors of the dashboard and its
// worker. Collectors are registered once by Init; the Observe and Inc
// helpers are no-ops before that, so packages can call them unconditionally.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "umkm_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	incomeMutations *prometheus.CounterVec
	aggregateSize   prometheus.Histogram
	skippedRecords  prometheus.Counter

	eventsPublished *prometheus.CounterVec
	eventsConsumed  *prometheus.CounterVec

	syncProcessed *prometheus.CounterVec
	syncPending   prometheus.Gauge

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	suspiciousRequests prometheus.Counter
	rateLimited        prometheus.Counter

	sessionsActive prometheus.GaugeFunc
)

// Init registers the collectors. activeSessions, if set, backs the
// active-session gauge.
func Init(activeSessions func() int) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "method", "code"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		)
		incomeMutations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "income_mutations_total",
				Help: "Income create/update/delete operations by result",
			},
			[]string{"op", "result"},
		)
		aggregateSize = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "income_aggregate_records",
				Help:    "Number of records fed to the income aggregator",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)
		skippedRecords = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "income_skipped_records_total",
				Help: "Income records left out of aggregates because their date did not parse",
			},
		)
		eventsPublished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "income_events_published_total",
				Help: "Income events published to AMQP by type and result",
			},
			[]string{"type", "result"},
		)
		eventsConsumed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "income_events_consumed_total",
				Help: "Income events handled by the worker by type and result",
			},
			[]string{"type", "result"},
		)
		syncProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_processed_total",
				Help: "Outbox entries exported to the spreadsheet ledger by op and result",
			},
			[]string{"op", "result"},
		)
		syncPending = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sync_pending",
				Help: "Outbox entries waiting for export",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Income report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Income report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)
		suspiciousRequests = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "suspicious_requests_total",
				Help: "Requests flagged by the security detector",
			},
		)
		rateLimited = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			incomeMutations,
			aggregateSize,
			skippedRecords,
			eventsPublished,
			eventsConsumed,
			syncProcessed,
			syncPending,
			exportTotal,
			exportLatency,
			suspiciousRequests,
			rateLimited,
		)

		if activeSessions != nil {
			sessionsActive = prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: metricPrefix + "sessions_active",
					Help: "Sessions held in the session cache",
				},
				func() float64 { return float64(activeSessions()) },
			)
			prometheus.MustRegister(sessionsActive)
		}
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

func ObserveHTTP(route, method string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(route, method).Observe(d.Seconds())
	}
}

func IncIncomeMutation(op string, err error) {
	if incomeMutations != nil {
		incomeMutations.WithLabelValues(op, result(err)).Inc()
	}
}

// ObserveAggregate records the input size of one aggregation and how many
// records it skipped.
func ObserveAggregate(records, skipped int) {
	if aggregateSize != nil {
		aggregateSize.Observe(float64(records))
	}
	if skippedRecords != nil && skipped > 0 {
		skippedRecords.Add(float64(skipped))
	}
}

func IncEventPublished(eventType string, err error) {
	if eventsPublished != nil {
		eventsPublished.WithLabelValues(eventType, result(err)).Inc()
	}
}

func IncEventConsumed(eventType string, err error) {
	if eventsConsumed != nil {
		eventsConsumed.WithLabelValues(eventType, result(err)).Inc()
	}
}

func IncSyncProcessed(op string, err error) {
	if syncProcessed != nil {
		syncProcessed.WithLabelValues(op, result(err)).Inc()
	}
}

func SetSyncPending(n int64) {
	if syncPending != nil {
		syncPending.Set(float64(n))
	}
}

func ObserveExport(format string, err error, d time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result(err)).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format).Observe(d.Seconds())
	}
}

func IncSuspiciousRequest() {
	if suspiciousRequests != nil {
		suspiciousRequests.Inc()
	}
}

func IncRateLimited() {
	if rateLimited != nil {
		rateLimited.Inc()
	}
}
