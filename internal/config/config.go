package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// Comma-separated ticker symbols the service tracks, e.g. "GME,AMC,TSLA".
	Symbols string `env:"SYMBOLS" default:"GME,AMC,TSLA"`

	PushshiftBaseURL string  `env:"PUSHSHIFT_BASE_URL" default:"https://api.pushshift.io"`
	PushshiftRPS     float64 `env:"PUSHSHIFT_RPS" default:"1"`
	FetchPageSize    int     `env:"FETCH_PAGE_SIZE" default:"100"`
	MaxPagesPerFetch int     `env:"MAX_PAGES_PER_FETCH" default:"20"`

	// Submissions below this upvote score are excluded from analysis.
	MinScore     int `env:"MIN_SCORE" default:"20"`
	LookbackDays int `env:"LOOKBACK_DAYS" default:"30"`

	// Rolling-mean window (in submissions) for the sentiment timeline.
	TimelineWindow int `env:"TIMELINE_WINDOW" default:"10"`
	// Maximum number of tokens returned in a frequency table.
	FrequencyLimit int `env:"FREQUENCY_LIMIT" default:"50"`

	CacheTTL        time.Duration `env:"CACHE_TTL" default:"1m"`
	SnapshotTTL     time.Duration `env:"SNAPSHOT_TTL" default:"5m"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" default:"15m"`
	RefreshDebounce time.Duration `env:"REFRESH_DEBOUNCE" default:"2m"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`

	// Optional YAML files; empty means the embedded defaults are used.
	LexiconPath   string `env:"LEXICON_PATH"`
	StopwordsPath string `env:"STOPWORDS_PATH"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.SymbolList()) == 0 {
		return fmt.Errorf("SYMBOLS must name at least one ticker symbol")
	}
	for _, symbol := range cfg.SymbolList() {
		if len(symbol) > 6 {
			return fmt.Errorf("SYMBOLS entry %q exceeds 6 characters", symbol)
		}
	}

	if cfg.PushshiftRPS <= 0 {
		return fmt.Errorf("PUSHSHIFT_RPS must be positive, got %v", cfg.PushshiftRPS)
	}
	if cfg.FetchPageSize < 1 || cfg.FetchPageSize > 500 {
		return fmt.Errorf("FETCH_PAGE_SIZE must be between 1 and 500, got %d", cfg.FetchPageSize)
	}
	if cfg.MaxPagesPerFetch < 1 {
		return fmt.Errorf("MAX_PAGES_PER_FETCH must be at least 1, got %d", cfg.MaxPagesPerFetch)
	}
	if cfg.MinScore < 0 {
		return fmt.Errorf("MIN_SCORE must not be negative, got %d", cfg.MinScore)
	}
	if cfg.LookbackDays < 1 {
		return fmt.Errorf("LOOKBACK_DAYS must be at least 1, got %d", cfg.LookbackDays)
	}
	if cfg.TimelineWindow < 1 {
		return fmt.Errorf("TIMELINE_WINDOW must be at least 1, got %d", cfg.TimelineWindow)
	}
	if cfg.FrequencyLimit < 1 {
		return fmt.Errorf("FREQUENCY_LIMIT must be at least 1, got %d", cfg.FrequencyLimit)
	}

	return nil
}

// SymbolList returns the configured symbols, trimmed, uppercased, and
// deduplicated, preserving first-seen order.
func (c *Config) SymbolList() []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, raw := range strings.Split(c.Symbols, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}
	return symbols
}
