// Package metrics provides Prometheus instrumentation for the bridge. It
// exposes gauges for live guild connections, counters for relay throughput
// and fan-out gating decisions, and a histogram for command round-trips.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectedGuilds tracks the number of guild sessions currently connected.
	ConnectedGuilds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guildlink_connected_guilds",
		Help: "Current number of connected guild sessions",
	})

	// ReconnectsTotal counts reconnect attempts, labeled by guild.
	ReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guildlink_reconnects_total",
		Help: "Total number of reconnect attempts",
	}, []string{"guild"})

	// MessagesRelayed counts records that passed the fan-out gate, labeled
	// by source guild.
	MessagesRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guildlink_messages_relayed_total",
		Help: "Total number of records fanned out to peer guilds",
	}, []string{"source"})

	// MessagesDropped counts fan-out and delivery drops, labeled by reason:
	// "loop", "duplicate", "rate_limited", "offline", "send_failed",
	// "same_guild", "render".
	MessagesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guildlink_messages_dropped_total",
		Help: "Total number of records dropped before or during delivery",
	}, []string{"reason"})

	// QueueDepth tracks the number of items waiting in the delivery queue.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guildlink_queue_depth",
		Help: "Current number of items in the delivery queue",
	})

	// CommandsTotal counts external moderation commands, labeled by kind and
	// outcome ("success", "failed", "timeout", "rejected", "error").
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guildlink_commands_total",
		Help: "Total number of external moderation commands processed",
	}, []string{"kind", "outcome"})

	// CommandDuration records the command round-trip from dispatch to
	// correlated reply.
	CommandDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "guildlink_command_duration_seconds",
		Help:    "Time from command dispatch to correlated game-server reply",
		Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 15},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectedGuilds,
		ReconnectsTotal,
		MessagesRelayed,
		MessagesDropped,
		QueueDepth,
		CommandsTotal,
		CommandDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
