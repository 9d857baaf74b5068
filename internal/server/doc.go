// Package server implements the HTTP server using Echo framework.
//
// Routes: JSON API (aggregate, frequencies, timeline, submissions, refresh),
// health probes, Prometheus metrics, and the per-symbol WebSocket feed.
// Handlers split by concern: handlers_api.go, handlers_health.go,
// handlers_ws.go.
package server
