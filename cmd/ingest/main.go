package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pscheid92/tickerpulse/internal/config"
	"github.com/pscheid92/tickerpulse/internal/database"
	"github.com/pscheid92/tickerpulse/internal/logging"
	"github.com/pscheid92/tickerpulse/internal/reddit"
	"github.com/pscheid92/tickerpulse/internal/version"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Operational tooling for the submission pipeline",
	Long:  "Fetches Reddit submissions into Postgres, runs migrations, and reports ingest status without going through the API server.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("ingest %s (%s, built %s, %s)\n", info.Version, info.Commit, info.BuildTime, info.GoVersion)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.RunMigrations(cmd.Context(), pool); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Println("Migrations applied.")
		return nil
	},
}

// --- fetch command ---

var fetchDaysBack int

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbol...]",
	Short: "Fetch submissions for symbols and store them",
	Long:  "Fetches submissions for the given symbols (default: all configured symbols) and upserts them into Postgres. Bypasses the cross-replica refresh debouncer, so it is safe to run next to live replicas.",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := cfg.SymbolList()
		if len(args) > 0 {
			symbols = normalizeSymbols(args)
		}

		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := database.NewSubmissionRepo(pool)
		source := reddit.NewClient(cfg.PushshiftBaseURL, cfg.PushshiftRPS, cfg.FetchPageSize, cfg.MaxPagesPerFetch)

		daysBack := fetchDaysBack
		if daysBack <= 0 {
			daysBack = cfg.LookbackDays
		}
		now := time.Now().UTC()
		from := now.AddDate(0, 0, -daysBack)

		var failed int
		for _, symbol := range symbols {
			fmt.Printf("Fetching %s (last %d days)...\n", symbol, daysBack)

			submissions, err := source.FetchSubmissions(cmd.Context(), symbol, from, now)
			if err != nil {
				fmt.Printf("  Error: %v\n", err)
				failed++
				continue
			}

			stored, err := repo.UpsertSubmissions(cmd.Context(), submissions)
			if err != nil {
				fmt.Printf("  Error: %v\n", err)
				failed++
				continue
			}
			fmt.Printf("  Fetched %d, stored %d new or updated.\n", len(submissions), stored)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d symbols failed", failed, len(symbols))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchDaysBack, "days-back", 0, "Override lookback window (days)")
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored submission counts per symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := database.NewSubmissionRepo(pool)

		stored, err := repo.DistinctSymbols(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing symbols: %w", err)
		}

		// Configured symbols first, then stragglers still in the database.
		symbols := cfg.SymbolList()
		seen := make(map[string]struct{}, len(symbols))
		for _, symbol := range symbols {
			seen[symbol] = struct{}{}
		}
		for _, symbol := range stored {
			if _, ok := seen[symbol]; !ok {
				symbols = append(symbols, symbol)
			}
		}

		fmt.Println("Submissions:")
		for _, symbol := range symbols {
			count, err := repo.CountBySymbol(cmd.Context(), symbol)
			if err != nil {
				return fmt.Errorf("counting %s: %w", symbol, err)
			}

			latest, ok, err := repo.LatestCreatedAt(cmd.Context(), symbol)
			if err != nil {
				return fmt.Errorf("reading latest for %s: %w", symbol, err)
			}

			if !ok {
				fmt.Printf("  %-6s %8d\n", symbol, count)
				continue
			}
			fmt.Printf("  %-6s %8d  newest %s\n", symbol, count, latest.UTC().Format(time.RFC3339))
		}
		return nil
	},
}

func normalizeSymbols(args []string) []string {
	symbols := make([]string, 0, len(args))
	for _, arg := range args {
		symbol := strings.ToUpper(strings.TrimSpace(arg))
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}
