package logging

import (
	"log/slog"
	"os"

	"github.com/pscheid92/tickerpulse/internal/correlation"
)

// Logger is the application-wide structured logger instance.
var Logger *slog.Logger

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	// Parse log level
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	handler = correlation.NewHandler(handler)

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// WithSymbol returns a logger with symbol field.
func WithSymbol(symbol string) *slog.Logger {
	return Logger.With("symbol", symbol)
}

// WithSubmission returns a logger with submission_id field.
func WithSubmission(submissionID string) *slog.Logger {
	return Logger.With("submission_id", submissionID)
}

// WithSubreddit returns a logger with subreddit field.
func WithSubreddit(subreddit string) *slog.Logger {
	return Logger.With("subreddit", subreddit)
}

// WithError returns a logger with error field.
func WithError(err error) *slog.Logger {
	return Logger.With("error", err)
}
