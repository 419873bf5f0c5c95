// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solwire",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solwire",
			Subsystem: "ops",
			Name:      "executions_total",
			Help:      "Total number of operation executions.",
		},
		[]string{"operation", "status"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solwire",
			Subsystem: "ops",
			Name:      "execution_duration_seconds",
			Help:      "Duration of operation executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	failovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solwire",
			Subsystem: "rpc",
			Name:      "failovers_total",
			Help:      "Total number of endpoint failover attempts.",
		},
	)

	probeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solwire",
			Subsystem: "rpc",
			Name:      "probe_failures_total",
			Help:      "Total number of failed endpoint liveness probes.",
		},
	)

	activeEndpoint = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solwire",
			Subsystem: "rpc",
			Name:      "active_endpoint_index",
			Help:      "Index of the active endpoint in the pool, -1 when degraded.",
		},
	)

	wsSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solwire",
			Subsystem: "ws",
			Name:      "active_sessions",
			Help:      "Current number of open WebSocket sessions.",
		},
	)

	wsMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solwire",
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "Total number of inbound WebSocket messages.",
		},
		[]string{"type"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		operations,
		operationDuration,
		failovers,
		probeFailures,
		activeEndpoint,
		wsSessions,
		wsMessages,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	activeEndpoint.Set(-1)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight HTTP gauge.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight decrements the in-flight HTTP gauge.
func DecInFlight() { httpInFlight.Dec() }

// RecordOperation records one operation execution.
func RecordOperation(operation, status string, duration time.Duration) {
	operations.WithLabelValues(operation, status).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFailover counts one failover attempt.
func RecordFailover() { failovers.Inc() }

// RecordProbeFailure counts one failed liveness probe.
func RecordProbeFailure() { probeFailures.Inc() }

// SetActiveEndpoint publishes the pool index of the active endpoint.
// Pass -1 when no endpoint is connected.
func SetActiveEndpoint(index int) { activeEndpoint.Set(float64(index)) }

// WSSessionOpened increments the active session gauge.
func WSSessionOpened() { wsSessions.Inc() }

// WSSessionClosed decrements the active session gauge.
func WSSessionClosed() { wsSessions.Dec() }

// RecordWSMessage counts one inbound WebSocket message by type.
func RecordWSMessage(msgType string) { wsMessages.WithLabelValues(msgType).Inc() }
