// Package observability provides the Prometheus metrics and HTTP
// instrumentation infrastructure shared across the handheld's packet
// pipeline, guidance executor, and debug server.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the handheld exposes.
type Metrics struct {
	// HTTP metrics (debug server)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// WebSocket metrics (debug dashboard)
	WebSocketConnections prometheus.Gauge
	WebSocketMessages    *prometheus.CounterVec

	// NATS metrics (telemetry relay)
	NATSMessagesPublished *prometheus.CounterVec
	NATSConnectionStatus  prometheus.Gauge

	// Pipeline metrics
	PacketsReceived  prometheus.Counter
	PacketsProcessed prometheus.Counter
	PacketsErrored   *prometheus.CounterVec
	PacketAge        prometheus.Histogram
	FilterWarmedUp   prometheus.Gauge

	// Guidance metrics
	RulesMatched        *prometheus.CounterVec
	InstructionsEmitted *prometheus.CounterVec
	GpsLossEvents       prometheus.Counter

	// Executor metrics
	ExecutorState       prometheus.Gauge
	DisplacementTracked prometheus.Histogram
	SpeechErrors        *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the process-wide metrics instance, initializing it on
// first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = initializeMetrics()
	})
	return globalMetrics
}

func initializeMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served by the debug server",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "openeyes",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "endpoint"},
	)

	m.WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openeyes",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active debug-dashboard WebSocket connections",
		},
	)

	m.WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket messages sent to debug clients",
		},
		[]string{"type"},
	)

	m.NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "nats",
			Name:      "messages_published_total",
			Help:      "Total telemetry events published to NATS",
		},
		[]string{"subject"},
	)

	m.NATSConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openeyes",
			Subsystem: "nats",
			Name:      "connection_status",
			Help:      "NATS connection status (1 = connected, 0 = disconnected)",
		},
	)

	m.PacketsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "pipeline",
			Name:      "packets_received_total",
			Help:      "Total sensor packets received from the transport collaborator",
		},
	)

	m.PacketsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "pipeline",
			Name:      "packets_processed_total",
			Help:      "Total packets that passed validation and were filtered/fused",
		},
	)

	m.PacketsErrored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "pipeline",
			Name:      "packets_errored_total",
			Help:      "Total packets dropped, by error kind",
		},
		[]string{"kind"},
	)

	m.PacketAge = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "openeyes",
			Subsystem: "pipeline",
			Name:      "packet_age_ms",
			Help:      "Packet age at ingest, in milliseconds",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000},
		},
	)

	m.FilterWarmedUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openeyes",
			Subsystem: "pipeline",
			Name:      "filter_warmed_up",
			Help:      "1 once every sliding window has accumulated a full sample set",
		},
	)

	m.RulesMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "guidance",
			Name:      "rules_matched_total",
			Help:      "Total times each expert-engine rule matched",
		},
		[]string{"rule"},
	)

	m.InstructionsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "guidance",
			Name:      "instructions_emitted_total",
			Help:      "Total instructions emitted after deduplication, by kind",
		},
		[]string{"kind"},
	)

	m.GpsLossEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "guidance",
			Name:      "gps_loss_events_total",
			Help:      "Total times the pipeline flagged GPS loss during active navigation",
		},
	)

	m.ExecutorState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openeyes",
			Subsystem: "executor",
			Name:      "state",
			Help:      "Current guidance executor state (0=Idle,1=Speaking,2=Navigating,3=Alerting,4=Paused)",
		},
	)

	m.DisplacementTracked = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "openeyes",
			Subsystem: "executor",
			Name:      "displacement_tracked_meters",
			Help:      "Distance estimated by the displacement tracker per completed instruction",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20},
		},
	)

	m.SpeechErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openeyes",
			Subsystem: "executor",
			Name:      "speech_errors_total",
			Help:      "Total errors reported by the speech collaborator",
		},
		[]string{"op"},
	)

	return m
}

// RecordHTTPRequest records one debug-server HTTP request.
func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m := GetMetrics()
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateWebSocketConnections sets the active debug-dashboard connection gauge.
func UpdateWebSocketConnections(count int) {
	GetMetrics().WebSocketConnections.Set(float64(count))
}

// UpdateNATSConnectionStatus sets the NATS connection gauge.
func UpdateNATSConnectionStatus(connected bool) {
	if connected {
		GetMetrics().NATSConnectionStatus.Set(1)
	} else {
		GetMetrics().NATSConnectionStatus.Set(0)
	}
}

// RecordPacketErrored increments the drop counter for a given error kind.
func RecordPacketErrored(kind string) {
	GetMetrics().PacketsErrored.WithLabelValues(kind).Inc()
}

// RecordRuleMatched increments the match counter for a rule name.
func RecordRuleMatched(ruleName string) {
	GetMetrics().RulesMatched.WithLabelValues(ruleName).Inc()
}

// RecordInstructionEmitted increments the emitted-instruction counter for a
// kind.
func RecordInstructionEmitted(kind string) {
	GetMetrics().InstructionsEmitted.WithLabelValues(kind).Inc()
}
