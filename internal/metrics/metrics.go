package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redis Operations Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Reddit Fetch Metrics
var (
	// SubmissionsFetchedTotal tracks submissions fetched from the upstream API by symbol
	SubmissionsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_fetched_total",
			Help: "Total submissions fetched from the upstream API by symbol",
		},
		[]string{"symbol"},
	)

	// SubmissionsStoredTotal tracks submissions upserted into Postgres by symbol
	SubmissionsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_stored_total",
			Help: "Total submissions upserted into the store by symbol",
		},
		[]string{"symbol"},
	)

	// PushshiftRequestsTotal tracks upstream API requests by status (success/rate_limited/error)
	PushshiftRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushshift_requests_total",
			Help: "Total Pushshift API requests by result (success/rate_limited/error)",
		},
		[]string{"result"},
	)

	// PushshiftRequestDuration tracks upstream API request latency
	PushshiftRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pushshift_request_duration_seconds",
			Help:    "Pushshift API request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Analysis Pipeline Metrics
var (
	// ScoreDuration tracks single-title scoring latency
	ScoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentiment_score_duration_seconds",
			Help:    "Single title scoring duration in seconds",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05},
		},
	)

	// AggregateComputeDuration tracks full aggregate computation latency by symbol
	AggregateComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregate_compute_duration_seconds",
			Help:    "Full aggregate computation duration in seconds by symbol",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"symbol"},
	)

	// RefreshTotal tracks refresh runs by symbol and result (ok/debounced/error)
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_total",
			Help: "Total refresh runs by symbol and result (ok/debounced/error)",
		},
		[]string{"symbol", "result"},
	)
)

// Cache Metrics
var (
	// CacheHitsTotal tracks aggregate cache hits by layer (memory/snapshot)
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregate_cache_hits_total",
			Help: "Total aggregate cache hits by layer (memory/snapshot)",
		},
		[]string{"layer"},
	)

	// CacheMissesTotal tracks aggregate cache misses by layer (memory/snapshot)
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregate_cache_misses_total",
			Help: "Total aggregate cache misses by layer (memory/snapshot)",
		},
		[]string{"layer"},
	)

	// CacheInvalidationsTotal tracks aggregate cache invalidations
	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_cache_invalidations_total",
			Help: "Total aggregate cache invalidations",
		},
	)

	// CacheEvictionsTotal tracks expired entries removed from the in-memory cache
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_cache_evictions_total",
			Help: "Total expired entries evicted from the in-memory aggregate cache",
		},
	)

	// CacheSize tracks the current number of entries in the in-memory cache
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregate_cache_size",
			Help: "Current number of entries in the in-memory aggregate cache",
		},
	)
)

// Hub / WebSocket Metrics
var (
	// HubSymbolsActive tracks number of symbols with at least one connected client
	HubSymbolsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_symbols_active",
			Help: "Number of symbols with at least one connected WebSocket client",
		},
	)

	// HubClientsConnected tracks total connected WebSocket clients across all symbols
	HubClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_clients_connected_total",
			Help: "Total number of connected WebSocket clients across all symbols",
		},
	)

	// HubSlowClientsEvicted tracks slow clients evicted due to full send buffers
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total number of slow WebSocket clients evicted due to buffer full",
		},
	)

	// WebSocketConnectionsTotal tracks connection attempts by result (success/rejected/error)
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/rejected/error)",
		},
		[]string{"result"},
	)

	// PubSubSubscriptionActive tracks whether the pub/sub subscription is active (1) or disconnected (0)
	PubSubSubscriptionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pubsub_subscription_active",
			Help: "1 if pub/sub subscription is active, 0 if disconnected",
		},
	)
)

// Maintainer Metrics
var (
	// MaintainerIsLeader tracks whether this node currently holds the refresh leader lock
	MaintainerIsLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maintainer_is_leader",
			Help: "1 if this node holds the refresh leader lock, 0 otherwise",
		},
	)

	// MaintainerRunsTotal tracks background refresh sweeps by result (ok/partial/error/skipped)
	MaintainerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintainer_runs_total",
			Help: "Total background refresh sweeps by result (ok/partial/error/skipped)",
		},
		[]string{"result"},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query latency by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds by query name",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query name",
		},
		[]string{"query"},
	)
)
