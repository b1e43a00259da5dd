package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	sessionsActiveGauge prometheus.Gauge
	attemptsTotal       *prometheus.CounterVec
	gradingSeconds      prometheus.Histogram
	wsConnectionsTotal  prometheus.Counter
	notificationsTotal  *prometheus.CounterVec
	sseClientsGauge     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		sessionsActiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exam_sessions_active",
			Help: "Number of live timed test sessions.",
		})

		attemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_attempts_submitted_total",
			Help: "Attempt finalisations grouped by outcome.",
		}, []string{"outcome"})

		gradingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_grading_duration_seconds",
			Help:    "Time spent grading a submitted attempt.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		})

		wsConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_session_ws_connections_total",
			Help: "Total websocket connections opened on the session channel.",
		})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_notifications_published_total",
			Help: "Notifications published, grouped by kind.",
		}, []string{"kind"})

		sseClientsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exam_sse_clients_active",
			Help: "Number of connected notification stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			sessionsActiveGauge, attemptsTotal, gradingSeconds, wsConnectionsTotal,
			notificationsTotal, sseClientsGauge,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SessionsActive exposes the live session gauge.
func SessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return sessionsActiveGauge
}

// AttemptsSubmitted exposes the attempt outcome counter.
func AttemptsSubmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsTotal
}

// GradingDuration exposes the grading latency histogram.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingSeconds
}

// SessionWSConnections exposes the websocket connection counter.
func SessionWSConnections() prometheus.Counter {
	RegisterMetrics()
	return wsConnectionsTotal
}

// NotificationsPublished exposes the per-kind notification counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SSEClientsActive exposes the connected stream client gauge.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsGauge
}
