package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay metrics
var (
	// EventsRelayed tracks processed events by kind
	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Total relayed events by kind",
		},
		[]string{"kind"},
	)

	// BroadcastsSent tracks envelopes fanned out to subscribers
	BroadcastsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_broadcasts_total",
			Help: "Total envelopes broadcast to authenticated subscribers",
		},
	)

	// CommandsExecuted tracks console commands dispatched for subscribers by status
	CommandsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_commands_total",
			Help: "Console commands dispatched on behalf of subscribers by status",
		},
		[]string{"status"},
	)
)

// Hub metrics
var (
	// HubConnections tracks currently tracked WebSocket connections (any auth state)
	HubConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connections",
			Help: "Currently tracked WebSocket connections",
		},
	)

	// HubAuthenticatedConnections tracks connections that presented the shared secret
	HubAuthenticatedConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_authenticated_connections",
			Help: "Currently authenticated WebSocket connections",
		},
	)

	// AuthOutcomes tracks authentication attempts by outcome (success/failed/timeout)
	AuthOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_auth_outcomes_total",
			Help: "Authentication outcomes by result",
		},
		[]string{"outcome"},
	)

	// SlowClientsEvicted tracks clients disconnected for not draining their send buffer
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Clients evicted because their send buffer was full",
		},
	)

	// MessageSendDuration tracks WebSocket write latency in seconds
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)
)

// Log sink metrics
var (
	// LogLinesWritten tracks appended audit log lines
	LogLinesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsink_lines_written_total",
			Help: "Total lines appended to the audit log",
		},
	)

	// LogRotations tracks log file rotations
	LogRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsink_rotations_total",
			Help: "Total log file rotations",
		},
	)

	// LogFilesPruned tracks old log files deleted by retention
	LogFilesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsink_files_pruned_total",
			Help: "Old log files deleted beyond the retention count",
		},
	)
)
