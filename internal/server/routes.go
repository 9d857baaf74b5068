package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	refreshRatePerSecond = 0.2
	refreshRateBurst     = 2
)

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/symbols", s.handleSymbols)
	api.GET("/sentiment/:symbol", s.handleAggregate)
	api.GET("/sentiment/:symbol/frequencies", s.handleTokenFrequencies)
	api.GET("/sentiment/:symbol/timeline", s.handleTimeline)
	api.GET("/submissions/:symbol", s.handleSubmissions)

	// Manual refresh hits the upstream API; throttle it per IP on top of the
	// cross-replica debouncer.
	api.POST("/refresh/:symbol", s.handleRefresh, newRateLimiter(refreshRatePerSecond, refreshRateBurst))

	if s.hub != nil {
		s.echo.GET("/ws/:symbol", s.handleWebSocket)
	}
}
