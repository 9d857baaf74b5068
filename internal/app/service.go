package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/tickerpulse/internal/domain"
	"github.com/pscheid92/tickerpulse/internal/metrics"
	"github.com/pscheid92/tickerpulse/internal/sentiment"
	"github.com/pscheid92/tickerpulse/internal/text"
)

// cursorOverlap is how far the incremental fetch cursor reaches back behind
// the newest stored submission. Upserts are idempotent, so re-covering the
// overlap only refreshes vote scores.
const cursorOverlap = time.Hour

// Options carries the analysis knobs the service needs from configuration.
type Options struct {
	Symbols        []string
	Lookback       time.Duration
	MinScore       int
	TimelineWindow int
	FrequencyLimit int
}

// Service is the application layer — the only component that references
// multiple domain components. It orchestrates all use cases: reads walk the
// cache hierarchy (memory, Redis snapshot, recompute), refreshes pull from
// the upstream source and fan out invalidations.
type Service struct {
	source       domain.SubmissionSource
	store        domain.SubmissionStore
	scorer       *sentiment.Scorer
	preprocessor *text.Preprocessor
	cache        *sentiment.ResultCache
	snapshots    domain.SnapshotStore
	debouncer    domain.RefreshDebouncer
	publisher    domain.UpdatePublisher
	clock        clockwork.Clock
	computeGroup singleflight.Group

	symbols   []string
	symbolSet map[string]struct{}
	opts      Options
}

// NewService creates the application layer service.
func NewService(
	source domain.SubmissionSource,
	store domain.SubmissionStore,
	scorer *sentiment.Scorer,
	preprocessor *text.Preprocessor,
	cache *sentiment.ResultCache,
	snapshots domain.SnapshotStore,
	debouncer domain.RefreshDebouncer,
	publisher domain.UpdatePublisher,
	clock clockwork.Clock,
	opts Options,
) *Service {
	symbolSet := make(map[string]struct{}, len(opts.Symbols))
	symbols := make([]string, 0, len(opts.Symbols))
	for _, symbol := range opts.Symbols {
		normalized := normalizeSymbol(symbol)
		if _, ok := symbolSet[normalized]; ok || normalized == "" {
			continue
		}
		symbolSet[normalized] = struct{}{}
		symbols = append(symbols, normalized)
	}

	return &Service{
		source:       source,
		store:        store,
		scorer:       scorer,
		preprocessor: preprocessor,
		cache:        cache,
		snapshots:    snapshots,
		debouncer:    debouncer,
		publisher:    publisher,
		clock:        clock,
		symbols:      symbols,
		symbolSet:    symbolSet,
		opts:         opts,
	}
}

var _ domain.AppService = (*Service)(nil)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// TrackedSymbols returns the configured symbols in their configured order.
func (s *Service) TrackedSymbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

func (s *Service) resolveSymbol(symbol string) (string, error) {
	normalized := normalizeSymbol(symbol)
	if _, ok := s.symbolSet[normalized]; !ok {
		return "", domain.ErrSymbolNotTracked
	}
	return normalized, nil
}

// GetAggregate returns the symbol's aggregate, walking memory cache, Redis
// snapshot, then a full recompute. Concurrent misses for the same symbol are
// collapsed into one computation.
func (s *Service) GetAggregate(ctx context.Context, symbol string) (domain.AggregateResult, error) {
	symbol, err := s.resolveSymbol(symbol)
	if err != nil {
		return domain.AggregateResult{}, err
	}

	if cached, ok := s.cache.Get(symbol); ok {
		metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
		return *cached, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("memory").Inc()

	result, err, _ := s.computeGroup.Do(symbol, func() (any, error) {
		return s.loadOrCompute(ctx, symbol)
	})
	if err != nil {
		return domain.AggregateResult{}, err
	}
	return result.(domain.AggregateResult), nil
}

// loadOrCompute checks the shared snapshot before recomputing. A snapshot
// store failure degrades to a recompute instead of failing the read.
func (s *Service) loadOrCompute(ctx context.Context, symbol string) (domain.AggregateResult, error) {
	snapshot, err := s.snapshots.GetSnapshot(ctx, symbol)
	if err != nil {
		slog.Warn("Snapshot lookup failed, recomputing", "symbol", symbol, "error", err)
	}
	if snapshot != nil {
		metrics.CacheHitsTotal.WithLabelValues("snapshot").Inc()
		s.cache.Set(symbol, *snapshot)
		return *snapshot, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("snapshot").Inc()

	result, err := s.computeAggregate(ctx, symbol)
	if err != nil {
		return domain.AggregateResult{}, err
	}

	s.cache.Set(symbol, result)
	if err := s.snapshots.SetSnapshot(ctx, symbol, result); err != nil {
		slog.Warn("Failed to store aggregate snapshot", "symbol", symbol, "error", err)
	}
	return result, nil
}

// computeAggregate runs the full pipeline for one symbol: list stored
// submissions, score every title, count tokens, fold into the aggregate.
func (s *Service) computeAggregate(ctx context.Context, symbol string) (domain.AggregateResult, error) {
	timer := prometheus.NewTimer(metrics.AggregateComputeDuration.WithLabelValues(symbol))
	defer timer.ObserveDuration()

	submissions, err := s.listForAnalysis(ctx, symbol)
	if err != nil {
		return domain.AggregateResult{}, err
	}
	if len(submissions) == 0 {
		return domain.AggregateResult{}, domain.ErrNoData
	}

	scores, err := s.scorer.ScoreAll(ctx, submissions)
	if err != nil {
		return domain.AggregateResult{}, err
	}

	tokens := make([][]string, len(submissions))
	for i, submission := range submissions {
		tokens[i] = s.preprocessor.Preprocess(submission.Title)
	}

	result, err := sentiment.Aggregate(symbol, scores, tokens)
	if err != nil {
		return domain.AggregateResult{}, err
	}
	result.GeneratedAt = s.clock.Now().UTC()

	slog.Debug("Aggregate computed",
		"symbol", symbol,
		"submissions", result.SubmissionCount,
		"mean_compound", result.MeanCompound,
	)
	return result, nil
}

func (s *Service) listForAnalysis(ctx context.Context, symbol string) ([]domain.Submission, error) {
	since := s.clock.Now().Add(-s.opts.Lookback)
	return s.store.ListBySymbol(ctx, symbol, since, s.opts.MinScore, 0)
}

// GetTokenFrequencies returns the symbol's top tokens by count. A
// non-positive limit falls back to the configured default.
func (s *Service) GetTokenFrequencies(ctx context.Context, symbol string, limit int) ([]domain.TokenCount, error) {
	result, err := s.GetAggregate(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.FrequencyLimit
	}
	return sentiment.TopTokens(result.TokenFrequencies, limit), nil
}

// GetTimeline returns the symbol's per-submission sentiment series with a
// rolling mean. A non-positive window falls back to the configured default.
// The timeline is recomputed per request; it is not part of the cached
// aggregate because its window is a request parameter.
func (s *Service) GetTimeline(ctx context.Context, symbol string, window int) ([]domain.TimelinePoint, error) {
	symbol, err := s.resolveSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = s.opts.TimelineWindow
	}

	submissions, err := s.listForAnalysis(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(submissions) == 0 {
		return nil, domain.ErrNoData
	}

	scores, err := s.scorer.ScoreAll(ctx, submissions)
	if err != nil {
		return nil, err
	}

	return sentiment.Timeline(submissions, scores, window), nil
}

// ListSubmissions returns the symbol's stored submissions, newest first.
func (s *Service) ListSubmissions(ctx context.Context, symbol string, limit int) ([]domain.Submission, error) {
	symbol, err := s.resolveSymbol(symbol)
	if err != nil {
		return nil, err
	}

	since := s.clock.Now().Add(-s.opts.Lookback)
	submissions, err := s.store.ListBySymbol(ctx, symbol, since, s.opts.MinScore, limit)
	if err != nil {
		return nil, err
	}
	if len(submissions) == 0 {
		return nil, domain.ErrNoData
	}
	return submissions, nil
}

// Refresh pulls new submissions for a symbol from the upstream source,
// stores them and invalidates every cache layer. The debouncer makes sure
// only one refresh per symbol runs per debounce interval across all
// replicas; losers get ErrRefreshDebounced.
func (s *Service) Refresh(ctx context.Context, symbol string) (domain.RefreshOutcome, error) {
	symbol, err := s.resolveSymbol(symbol)
	if err != nil {
		return domain.RefreshOutcome{}, err
	}

	acquired, err := s.debouncer.TryAcquire(ctx, symbol)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues(symbol, "error").Inc()
		return domain.RefreshOutcome{}, err
	}
	if !acquired {
		metrics.RefreshTotal.WithLabelValues(symbol, "debounced").Inc()
		return domain.RefreshOutcome{}, domain.ErrRefreshDebounced
	}

	start := s.clock.Now()
	outcome, err := s.runRefresh(ctx, symbol)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues(symbol, "error").Inc()
		return domain.RefreshOutcome{}, err
	}

	outcome.ElapsedMS = s.clock.Since(start).Milliseconds()
	metrics.RefreshTotal.WithLabelValues(symbol, "ok").Inc()
	slog.Info("Refresh complete",
		"symbol", symbol,
		"fetched", outcome.Fetched,
		"stored", outcome.Stored,
		"elapsed_ms", outcome.ElapsedMS,
	)
	return outcome, nil
}

func (s *Service) runRefresh(ctx context.Context, symbol string) (domain.RefreshOutcome, error) {
	now := s.clock.Now().UTC()
	from := now.Add(-s.opts.Lookback)

	// Incremental fetch: continue from the newest stored submission when one
	// exists inside the lookback window.
	latest, found, err := s.store.LatestCreatedAt(ctx, symbol)
	if err != nil {
		slog.Warn("Latest cursor lookup failed, fetching full lookback", "symbol", symbol, "error", err)
	} else if found && latest.After(from) {
		from = latest.Add(-cursorOverlap)
	}

	submissions, err := s.source.FetchSubmissions(ctx, symbol, from, now)
	if err != nil {
		return domain.RefreshOutcome{}, err
	}

	outcome := domain.RefreshOutcome{Symbol: symbol, Fetched: len(submissions)}
	if len(submissions) == 0 {
		return outcome, nil
	}

	stored, err := s.store.UpsertSubmissions(ctx, submissions)
	if err != nil {
		return domain.RefreshOutcome{}, err
	}
	outcome.Stored = stored
	metrics.SubmissionsStoredTotal.WithLabelValues(symbol).Add(float64(stored))

	s.invalidate(ctx, symbol)

	if err := s.publisher.PublishUpdate(ctx, symbol); err != nil {
		// Local caches are already invalidated; remote replicas converge
		// when their snapshots expire.
		slog.Warn("Failed to publish aggregate update", "symbol", symbol, "error", err)
	}
	return outcome, nil
}

func (s *Service) invalidate(ctx context.Context, symbol string) {
	s.cache.Invalidate(symbol)
	metrics.CacheInvalidationsTotal.Inc()
	if err := s.snapshots.Invalidate(ctx, symbol); err != nil {
		slog.Warn("Failed to invalidate aggregate snapshot", "symbol", symbol, "error", err)
	}
}

// InvalidateLocal drops the in-memory cache entry for a symbol. Called from
// the pub/sub subscriber when another replica refreshed the symbol.
func (s *Service) InvalidateLocal(symbol string) {
	s.cache.Invalidate(normalizeSymbol(symbol))
	metrics.CacheInvalidationsTotal.Inc()
}
