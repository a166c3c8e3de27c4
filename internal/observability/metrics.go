// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	AccountsScanned   *prometheus.CounterVec
	AccountErrors     *prometheus.CounterVec
	PhantomsDropped   prometheus.Counter
	DuplicatesDropped prometheus.Counter

	// Computation metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	MembersComputed prometheus.Gauge
	TotalPower      prometheus.Gauge
	ReportsRendered *prometheus.CounterVec

	// Transport metrics
	RPCCallLatency  *prometheus.HistogramVec
	RPCCallErrors   *prometheus.CounterVec
	WSNotifications prometheus.Counter
	WSReconnects    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "vsr_power"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Scan metrics
		AccountsScanned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "accounts_total",
			Help:      "Total number of accounts scanned by variant",
		}, []string{"variant"}),
		AccountErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "account_errors_total",
			Help:      "Total number of skipped accounts by reason",
		}, []string{"reason"}),
		PhantomsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "phantom_deposits_dropped_total",
			Help:      "Total number of placeholder deposits dropped",
		}),
		DuplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duplicate_deposits_dropped_total",
			Help:      "Total number of duplicate deposits dropped",
		}),

		// Computation metrics
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "runs_total",
			Help:      "Total number of power computations by trigger and status",
		}, []string{"trigger", "status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "duration_seconds",
			Help:      "Power computation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		MembersComputed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "members",
			Help:      "Number of members in the latest computation",
		}),
		TotalPower: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "total_power",
			Help:      "Sum of voting power in the latest computation",
		}),
		ReportsRendered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "reports_rendered_total",
			Help:      "Total number of reports rendered by format",
		}, []string{"format"}),

		// Transport metrics
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),
		WSNotifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_notifications_total",
			Help:      "Total number of program account notifications received",
		}),
		WSReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),

		// Health metrics
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful power computation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// ScanStats is the subset of computation diagnostics exported as metrics.
type ScanStats struct {
	Voters                   int
	Registrars               int
	Unknown                  int
	DecodeErrors             int
	ClassificationMismatches int
	RegistrarMismatches      int
	Phantoms                 int
	Duplicates               int
}

// RecordScan records account scan counters.
func RecordScan(s ScanStats) {
	m := DefaultMetrics
	m.AccountsScanned.WithLabelValues("voter").Add(float64(s.Voters))
	m.AccountsScanned.WithLabelValues("registrar").Add(float64(s.Registrars))
	m.AccountsScanned.WithLabelValues("unknown").Add(float64(s.Unknown))
	m.AccountErrors.WithLabelValues("decode").Add(float64(s.DecodeErrors))
	m.AccountErrors.WithLabelValues("classification").Add(float64(s.ClassificationMismatches))
	m.AccountErrors.WithLabelValues("registrar").Add(float64(s.RegistrarMismatches))
	m.PhantomsDropped.Add(float64(s.Phantoms))
	m.DuplicatesDropped.Add(float64(s.Duplicates))
}

// RecordRun records a power computation.
func RecordRun(trigger, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(trigger, status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordResult updates the latest-run gauges.
func RecordResult(members int, totalPower float64, finishedUnix int64) {
	DefaultMetrics.MembersComputed.Set(float64(members))
	DefaultMetrics.TotalPower.Set(totalPower)
	DefaultMetrics.LastSuccessfulRun.Set(float64(finishedUnix))
}

// RecordReport increments the reports rendered counter.
func RecordReport(format string) {
	DefaultMetrics.ReportsRendered.WithLabelValues(format).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordWSNotification increments the program notification counter.
func RecordWSNotification() {
	DefaultMetrics.WSNotifications.Inc()
}

// RecordWSReconnect increments the reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(route string, status int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
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
