package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the monitoring service.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec   // labels: method, route, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: method, route

	Submissions *prometheus.CounterVec // labels: kind={water-level,rainfall}, outcome={success,validation,auth,error,duplicate}

	ReportFetches       *prometheus.CounterVec   // labels: kind, outcome={success,empty,error,discarded}
	ReportFetchDuration *prometheus.HistogramVec // labels: kind

	ActiveSessions  prometheus.Gauge
	LoginAttempts   *prometheus.CounterVec // labels: outcome={success,failure}
	AlertsPublished *prometheus.CounterVec // labels: status, outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.Submissions,
		m.ReportFetches,
		m.ReportFetchDuration,
		m.ActiveSessions,
		m.LoginAttempts,
		m.AlertsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build
// as many instances as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydro",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro",
			Name:      "measurement_submissions_total",
			Help:      "Measurement submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ReportFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro",
			Name:      "report_fetches_total",
			Help:      "Report fetches by kind (hourly kind or period) and outcome.",
		}, []string{"kind", "outcome"}),
		ReportFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydro",
			Name:      "report_fetch_duration_seconds",
			Help:      "Duration of report rollup queries.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro",
			Name:      "active_sessions",
			Help:      "Authenticated sessions currently held in memory.",
		}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro",
			Name:      "login_attempts_total",
			Help:      "Credential submissions by outcome.",
		}, []string{"outcome"}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro",
			Name:      "level_alerts_published_total",
			Help:      "Water level alerts handed to the alert publisher.",
		}, []string{"status", "outcome"}),
	}
}
