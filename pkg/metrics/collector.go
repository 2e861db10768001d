// Package metrics exposes the Prometheus collectors shared across the bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	throttleDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "throttle_decisions_total",
			Help: "Throttle guard decisions split by outcome",
		},
		[]string{"outcome"},
	)
	relayNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notifications_total",
			Help: "Webhook notifications handled by the relay split by outcome",
		},
		[]string{"outcome"},
	)
	outboundSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbound_sends_total",
			Help: "Messages sent to Telegram split by status",
		},
		[]string{"status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordThrottle counts a throttle decision: granted, rate_limited, ineligible or error.
func RecordThrottle(outcome string) {
	throttleDecisionsTotal.WithLabelValues(label(outcome)).Inc()
}

// RecordRelay counts a relay outcome: sent, unknown_token, malformed, send_failed, ...
func RecordRelay(outcome string) {
	relayNotificationsTotal.WithLabelValues(label(outcome)).Inc()
}

// RecordSend counts an outbound Telegram send.
func RecordSend(status string) {
	outboundSendsTotal.WithLabelValues(label(status)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	errorsTotal.WithLabelValues(label(errType), label(severity)).Inc()
}

func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
