package server

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
	"github.com/pscheid92/tickerpulse/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards are read-only and anonymous; any origin may subscribe.
		return true
	},
}

// handleWebSocket subscribes a client to a symbol's aggregate updates. The
// connection passes three gates (rate, global cap, per-IP cap) before the
// upgrade; after the upgrade the hub owns all writes and this handler only
// pumps reads until the client goes away.
func (s *Server) handleWebSocket(c echo.Context) error {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if !slices.Contains(s.app.TrackedSymbols(), symbol) {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		return apperrors.NotFoundError("symbol is not tracked").WithField("symbol", symbol)
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("WebSocket connection rejected", "ip", ip, "reason", reason)
		return apperrors.RateLimitedError("connection limit reached").
			WithField("reason", string(reason))
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		slog.Error("WebSocket upgrade failed", "error", err)
		// Upgrade already wrote its own response.
		return nil
	}

	if err := s.hub.Register(symbol, conn); err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		// Connection already closed by the hub.
		return nil
	}
	metrics.WebSocketConnectionsTotal.WithLabelValues("success").Inc()

	// Read pump: clients do not send application data, but reading is what
	// surfaces close frames and keeps pong handling alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(symbol, conn)
	return nil
}
