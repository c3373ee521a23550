// Package metrics declares the Prometheus instrumentation for the game
// orchestrator. Declared close to the domain it measures, same layering the
// teacher repo uses, to avoid a dependency from internal/room or
// internal/hub back into a generic "observability" package.
//
// Naming convention: namespace_subsystem_name.
//   - namespace: soundclash
//   - subsystem: room, round, websocket, catalog, rate_limit
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live rooms in the registry.",
	})

	RoomTeams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "teams_current",
		Help:      "Current number of teams on the roster for a room.",
	}, []string{"game_code"})

	RoomsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "created_total",
		Help:      "Total number of rooms created.",
	})

	RoomsDisposedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "disposed_total",
		Help:      "Total number of rooms disposed, by reason.",
	}, []string{"reason"})

	RoundsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "round",
		Name:      "started_total",
		Help:      "Total number of rounds successfully started.",
	})

	BuzzesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "round",
		Name:      "buzzes_total",
		Help:      "Total buzz presses processed, by outcome.",
	}, []string{"outcome"}) // "won", "ignored"

	AnswerEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "round",
		Name:      "answer_evaluations_total",
		Help:      "Total EvaluateAnswer commands processed, by verdict.",
	}, []string{"verdict"}) // "wrong", "partial", "complete"

	CommandQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "command_queue_depth",
		Help:      "Depth of a room's command queue immediately after enqueue.",
	}, []string{"game_code"})

	CommandProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "command_processing_seconds",
		Help:      "Time the room consumer spends applying a single command.",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"command"})

	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active push-channel connections.",
	})

	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total inbound WebSocket messages processed, by type and status.",
	}, []string{"event_type", "status"})

	SessionsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "websocket",
		Name:      "sessions_dropped_total",
		Help:      "Sessions terminated by the hub, by reason.",
	}, []string{"reason"}) // "client_close", "backpressure", "missed_ping"

	CatalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "catalog",
		Name:      "requests_total",
		Help:      "Total Song Catalog selection requests, by outcome.",
	}, []string{"outcome"}) // "success", "no_song_available", "upstream_unavailable"

	CatalogRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "soundclash",
		Subsystem: "catalog",
		Name:      "request_duration_seconds",
		Help:      "Latency of Song Catalog selection calls.",
		Buckets:   prometheus.DefBuckets,
	})

	CatalogCircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "catalog",
		Name:      "circuit_breaker_state",
		Help:      "Song Catalog circuit breaker state (0=closed, 1=half-open, 2=open).",
	})

	RateLimitExceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total requests rejected by a rate limiter, by endpoint.",
	}, []string{"endpoint"})
)
