// Package metrics holds the Prometheus collectors of the arena server. They
// register with the default registry on import and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arena"

// GamesStartedTotal counts sessions created by the matchmaker.
// Label:
//   - time_limit_ms: the bucket the pair came from
var GamesStartedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_started_total",
		Help:      "Total number of game sessions started, by time limit.",
	},
	[]string{"time_limit_ms"},
)

// GamesFinishedTotal counts ended sessions.
// Labels:
//   - reason: checkmate, timeout, forfeit, stalemate, ...
//   - result: white, black or draw
var GamesFinishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_finished_total",
		Help:      "Total number of game sessions ended, by reason and result.",
	},
	[]string{"reason", "result"},
)

var MovesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moves_total",
		Help:      "Total number of accepted moves.",
	},
)

// InputErrorsTotal counts rejected client actions.
// Label:
//   - code: domain error code (e.g. "not_your_turn", "illegal_move")
var InputErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "input_errors_total",
		Help:      "Total number of client actions rejected with an input_error.",
	},
	[]string{"code"},
)

// QueueDepth is the number of waiting users per time limit.
var QueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of queued users, by time limit.",
	},
	[]string{"time_limit_ms"},
)

var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Current number of running game sessions.",
	},
)

var Connections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Current number of open push channel connections.",
	},
)

// SlowConsumersTotal counts connections closed because their outbound buffer filled.
var SlowConsumersTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_slow_consumers_total",
		Help:      "Total number of connections dropped for not draining their outbound buffer.",
	},
)

// GameCompletionDuration measures the atomic rating + history write.
var GameCompletionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "game_completion_duration_seconds",
		Help:      "Duration of persisting a finished game with its rating changes.",
		Buckets:   prometheus.DefBuckets,
	},
)
