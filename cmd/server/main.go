package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tickerpulse/internal/app"
	"github.com/pscheid92/tickerpulse/internal/broadcast"
	"github.com/pscheid92/tickerpulse/internal/config"
	"github.com/pscheid92/tickerpulse/internal/database"
	"github.com/pscheid92/tickerpulse/internal/lexicon"
	"github.com/pscheid92/tickerpulse/internal/logging"
	"github.com/pscheid92/tickerpulse/internal/reddit"
	"github.com/pscheid92/tickerpulse/internal/redis"
	"github.com/pscheid92/tickerpulse/internal/sentiment"
	"github.com/pscheid92/tickerpulse/internal/server"
	"github.com/pscheid92/tickerpulse/internal/text"
)

const cacheEvictionInterval = 1 * time.Minute

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupScoring(cfg *config.Config) (*sentiment.Scorer, *text.Preprocessor) {
	overrides, err := loadLexicon(cfg)
	if err != nil {
		slog.Error("Failed to load lexicon", "error", err)
		os.Exit(1)
	}

	preprocessor, err := loadPreprocessor(cfg)
	if err != nil {
		slog.Error("Failed to load stopwords", "error", err)
		os.Exit(1)
	}

	model, err := sentiment.NewVaderModel(overrides)
	if err != nil {
		slog.Error("Failed to initialize sentiment model", "error", err)
		os.Exit(1)
	}

	return sentiment.NewScorer(model, preprocessor), preprocessor
}

func loadLexicon(cfg *config.Config) (lexicon.Overrides, error) {
	if cfg.LexiconPath != "" {
		return lexicon.LoadFile(cfg.LexiconPath)
	}
	return lexicon.Default()
}

func loadPreprocessor(cfg *config.Config) (*text.Preprocessor, error) {
	if cfg.StopwordsPath != "" {
		stopwords, err := text.LoadStopwordsFile(cfg.StopwordsPath)
		if err != nil {
			return nil, err
		}
		return text.NewPreprocessor(stopwords), nil
	}
	return text.DefaultPreprocessor()
}

// instanceID identifies this replica in leader election. Hostname alone is
// not unique enough when replicas share a host.
func instanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return hostname + "-" + uuid.NewString()
}

func runGracefulShutdown(srv *server.Server, maintainer *app.Maintainer, hub *broadcast.Hub, cancelBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		maintainer.Stop()
		hub.Stop()
		cancelBackground()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "symbols", cfg.Symbols)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	repo := database.NewSubmissionRepo(pool)
	scorer, preprocessor := setupScoring(cfg)

	cache := sentiment.NewResultCache(cfg.CacheTTL, clock)
	stopEviction := cache.StartEvictionTimer(cacheEvictionInterval)
	defer stopEviction()

	snapshots := redis.NewSnapshotStore(redisClient, cfg.SnapshotTTL)
	debouncer := redis.NewDebouncer(redisClient, cfg.RefreshDebounce)
	publisher := redis.NewAggregateUpdatePublisher(redisClient)

	source := reddit.NewClient(cfg.PushshiftBaseURL, cfg.PushshiftRPS, cfg.FetchPageSize, cfg.MaxPagesPerFetch)

	svc := app.NewService(source, repo, scorer, preprocessor, cache, snapshots, debouncer, publisher, clock, app.Options{
		Symbols:        cfg.SymbolList(),
		Lookback:       time.Duration(cfg.LookbackDays) * 24 * time.Hour,
		MinScore:       cfg.MinScore,
		TimelineWindow: cfg.TimelineWindow,
		FrequencyLimit: cfg.FrequencyLimit,
	})

	hub := broadcast.NewHub(clock, cfg.MaxWebSocketConnections)

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	// Update notifications drop the local cache and push the fresh aggregate
	// to connected dashboards.
	subscriber := redis.NewAggregateUpdateSubscriber(redisClient, func(ctx context.Context, symbol string) {
		svc.InvalidateLocal(symbol)

		result, err := svc.GetAggregate(ctx, symbol)
		if err != nil {
			slog.Error("Failed to recompute aggregate after update", "symbol", symbol, "error", err)
			return
		}
		payload, err := json.Marshal(result)
		if err != nil {
			slog.Error("Failed to encode aggregate update", "symbol", symbol, "error", err)
			return
		}
		hub.Broadcast(symbol, payload)
	})
	go subscriber.Start(backgroundCtx)

	elector := redis.NewLeaderElector(redisClient, instanceID())
	maintainer := app.NewMaintainer(svc, elector, clock, cfg.RefreshInterval)
	maintainer.Start(backgroundCtx)

	healthChecks := []server.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: redisClient.Ping},
	}

	srv := server.NewServer(cfg, svc, hub, healthChecks)

	done := runGracefulShutdown(srv, maintainer, hub, cancelBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
