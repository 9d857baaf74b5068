package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/tickerpulse/internal/domain"
	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
)

const maxSubmissionPageSize = 500

// mapDomainError translates domain sentinels into structured errors so the
// error middleware renders the right status. Anything else passes through
// and surfaces as an internal error.
func mapDomainError(err error, symbol string) error {
	switch {
	case errors.Is(err, domain.ErrSymbolNotTracked):
		return apperrors.NotFoundError("symbol is not tracked").WithField("symbol", symbol)
	case errors.Is(err, domain.ErrNoData):
		// Explicit no-data state: clients must render it instead of a
		// misleading zero-sentiment chart.
		return apperrors.NotFoundError("no data for symbol").WithField("symbol", symbol)
	case errors.Is(err, domain.ErrRefreshDebounced):
		return apperrors.RateLimitedError("refresh recently triggered").WithField("symbol", symbol)
	default:
		return err
	}
}

func intQueryParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apperrors.ValidationError("query parameter must be a non-negative integer").
			WithField("param", name).
			WithField("value", raw)
	}
	return value, nil
}

func (s *Server) handleSymbols(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"symbols": s.app.TrackedSymbols(),
	})
}

func (s *Server) handleAggregate(c echo.Context) error {
	symbol := c.Param("symbol")

	result, err := s.app.GetAggregate(c.Request().Context(), symbol)
	if err != nil {
		return mapDomainError(err, symbol)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleTokenFrequencies(c echo.Context) error {
	symbol := c.Param("symbol")

	limit, err := intQueryParam(c, "limit", 0)
	if err != nil {
		return err
	}

	counts, err := s.app.GetTokenFrequencies(c.Request().Context(), symbol, limit)
	if err != nil {
		return mapDomainError(err, symbol)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"symbol":      strings.ToUpper(strings.TrimSpace(symbol)),
		"frequencies": counts,
	})
}

func (s *Server) handleTimeline(c echo.Context) error {
	symbol := c.Param("symbol")

	window, err := intQueryParam(c, "window", 0)
	if err != nil {
		return err
	}

	points, err := s.app.GetTimeline(c.Request().Context(), symbol, window)
	if err != nil {
		return mapDomainError(err, symbol)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"points": points,
	})
}

func (s *Server) handleSubmissions(c echo.Context) error {
	symbol := c.Param("symbol")

	limit, err := intQueryParam(c, "limit", 100)
	if err != nil {
		return err
	}
	if limit > maxSubmissionPageSize {
		limit = maxSubmissionPageSize
	}

	submissions, err := s.app.ListSubmissions(c.Request().Context(), symbol, limit)
	if err != nil {
		return mapDomainError(err, symbol)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"submissions": submissions,
	})
}

func (s *Server) handleRefresh(c echo.Context) error {
	symbol := c.Param("symbol")

	outcome, err := s.app.Refresh(c.Request().Context(), symbol)
	if err != nil {
		return mapDomainError(err, symbol)
	}
	return c.JSON(http.StatusAccepted, outcome)
}
