package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/tickerpulse/internal/broadcast"
	"github.com/pscheid92/tickerpulse/internal/config"
	"github.com/pscheid92/tickerpulse/internal/correlation"
	"github.com/pscheid92/tickerpulse/internal/domain"
	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
	"github.com/pscheid92/tickerpulse/internal/metrics"
)

const (
	maxConnectionsPerIP     = 32
	connectionRatePerSecond = 10.0
	connectionRateBurst     = 10
)

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app    domain.AppService
	hub    *broadcast.Hub
	limits *ConnectionLimits

	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires the Echo instance: middleware, routes, connection limits.
// hub may be nil when the WebSocket feed is disabled (operational binaries).
func NewServer(cfg *config.Config, app domain.AppService, hub *broadcast.Hub, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    app,
		hub:    hub,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			maxConnectionsPerIP,
			connectionRatePerSecond,
			connectionRateBurst,
		),
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	e.Use(correlationMiddleware)
	e.Use(srv.setupRequestLoggerMiddleware())
	e.Use(middleware.Recover())
	e.Use(metrics.HTTPMiddleware())
	e.Use(apperrors.Middleware())

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if id, ok := correlation.ID(c.Request().Context()); ok {
				attrs = append(attrs, "correlation_id", id)
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("Request", attrs...)
			return nil
		},
	})
}
