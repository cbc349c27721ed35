// Package server: metrics.go registers all Prometheus metrics for the HTTP
// server and the chat pipeline, and exposes helpers used by handlers and
// middleware.
package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/ragchat-go/internal/pipeline"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
	// namespace prefixes every metric name.
	namespace = "ragchat"
)

// Metrics holds all Prometheus collectors owned by the server. It also
// implements pipeline.Observer so the controller can report per-stage
// timings into the same registry.
type Metrics struct {
	// turnsTotal counts completed turns, partitioned by outcome:
	// "success" or "error".
	turnsTotal *prometheus.CounterVec

	// turnDurationSeconds records the wall-clock duration of each turn
	// from user input to reply.
	turnDurationSeconds *prometheus.HistogramVec

	// stageDurationSeconds records the duration of each pipeline stage
	// (embed, retrieve, generate), partitioned by outcome.
	stageDurationSeconds *prometheus.HistogramVec

	// chatActiveStreams is the number of /api/chat SSE streams currently open.
	chatActiveStreams prometheus.Gauge

	// dependencyUp is 1 when the last readiness probe of a dependency
	// succeeded and 0 otherwise.
	dependencyUp *prometheus.GaugeVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers all server metrics against reg and returns the
// populated Metrics. promauto.With(reg) is used so that each call registers
// into the provided registry rather than the global default, which keeps
// unit tests hermetic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "total",
			Help:      "Total number of chat turns completed, partitioned by outcome.",
		}, []string{"outcome"}),

		turnDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of chat turns from input to reply.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		stageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Duration of each pipeline stage, partitioned by stage and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage", "outcome"}),

		chatActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Number of /api/chat SSE streams currently open.",
		}),

		dependencyUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "up",
			Help:      "Result of the last readiness probe per dependency (1 = reachable).",
		}, []string{"dependency"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// StageCompleted implements pipeline.Observer.
func (m *Metrics) StageCompleted(stage pipeline.Stage, elapsed time.Duration, err error) {
	outcome := pipeline.OutcomeSuccess
	if err != nil {
		outcome = pipeline.OutcomeError
	}
	m.stageDurationSeconds.WithLabelValues(string(stage), outcome).Observe(elapsed.Seconds())
}

// TurnCompleted implements pipeline.Observer.
func (m *Metrics) TurnCompleted(outcome string, elapsed time.Duration) {
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
