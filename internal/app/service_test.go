package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/tickerpulse/internal/domain"
	"github.com/pscheid92/tickerpulse/internal/sentiment"
	"github.com/pscheid92/tickerpulse/internal/text"
)

// --- mocks ---

type mockSource struct {
	mu          sync.Mutex
	submissions []domain.Submission
	err         error
	calls       int
	lastFrom    time.Time
}

func (m *mockSource) FetchSubmissions(_ context.Context, _ string, from, _ time.Time) ([]domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastFrom = from
	return m.submissions, m.err
}

type mockStore struct {
	mu          sync.Mutex
	submissions []domain.Submission
	listErr     error
	upserted    []domain.Submission
	latest      time.Time
	hasLatest   bool
}

func (m *mockStore) UpsertSubmissions(_ context.Context, submissions []domain.Submission) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, submissions...)
	return int64(len(submissions)), nil
}

func (m *mockStore) ListBySymbol(_ context.Context, _ string, _ time.Time, _, _ int) ([]domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissions, m.listErr
}

func (m *mockStore) LatestCreatedAt(_ context.Context, _ string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.hasLatest, nil
}

func (m *mockStore) DistinctSymbols(_ context.Context) ([]string, error) { return nil, nil }

func (m *mockStore) CountBySymbol(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.submissions)), nil
}

type mockSnapshots struct {
	mu        sync.Mutex
	snapshots map[string]*domain.AggregateResult
	getErr    error
	sets      int
}

func newMockSnapshots() *mockSnapshots {
	return &mockSnapshots{snapshots: make(map[string]*domain.AggregateResult)}
}

func (m *mockSnapshots) GetSnapshot(_ context.Context, symbol string) (*domain.AggregateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.snapshots[symbol], nil
}

func (m *mockSnapshots) SetSnapshot(_ context.Context, symbol string, result domain.AggregateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.snapshots[symbol] = &result
	return nil
}

func (m *mockSnapshots) Invalidate(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, symbol)
	return nil
}

type mockDebouncer struct {
	allow bool
	err   error
}

func (m *mockDebouncer) TryAcquire(_ context.Context, _ string) (bool, error) {
	return m.allow, m.err
}

type mockPublisher struct {
	mu        sync.Mutex
	published []string
}

func (m *mockPublisher) PublishUpdate(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, symbol)
	return nil
}

// --- fixture ---

type fixture struct {
	service   *Service
	source    *mockSource
	store     *mockStore
	snapshots *mockSnapshots
	debouncer *mockDebouncer
	publisher *mockPublisher
	clock     *clockwork.FakeClock
}

// stubModel scores every non-empty text with a fixed compound of 0.5.
type stubModel struct{}

func (stubModel) Polarity(string) sentiment.Polarity {
	return sentiment.Polarity{Positive: 0.5, Neutral: 0.5, Compound: 0.5}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	preprocessor, err := text.DefaultPreprocessor()
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	f := &fixture{
		source:    &mockSource{},
		store:     &mockStore{},
		snapshots: newMockSnapshots(),
		debouncer: &mockDebouncer{allow: true},
		publisher: &mockPublisher{},
		clock:     clock,
	}

	f.service = NewService(
		f.source,
		f.store,
		sentiment.NewScorer(stubModel{}, preprocessor),
		preprocessor,
		sentiment.NewResultCache(time.Minute, clock),
		f.snapshots,
		f.debouncer,
		f.publisher,
		clock,
		Options{
			Symbols:        []string{"GME", "AMC"},
			Lookback:       30 * 24 * time.Hour,
			MinScore:       20,
			TimelineWindow: 10,
			FrequencyLimit: 50,
		},
	)
	return f
}

func submissionsFor(clock clockwork.Clock, symbol string, titles ...string) []domain.Submission {
	out := make([]domain.Submission, len(titles))
	for i, title := range titles {
		out[i] = domain.Submission{
			SubmissionID: fmt.Sprintf("%s-%d", symbol, i),
			Symbol:       symbol,
			Title:        title,
			Score:        100,
			CreatedAt:    clock.Now().Add(time.Duration(-i) * time.Hour),
		}
	}
	return out
}

// --- tests ---

func TestServiceGetAggregateComputes(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME", "Stock to the moon", "Buy and hold forever")

	result, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)

	assert.Equal(t, "GME", result.Symbol)
	assert.Equal(t, 2, result.SubmissionCount)
	assert.InDelta(t, 0.5, result.MeanCompound, 1e-12)
	assert.Equal(t, 1, result.TokenFrequencies["moon"])
	assert.Equal(t, f.clock.Now().UTC(), result.GeneratedAt)
	assert.Equal(t, 1, f.snapshots.sets, "computed aggregate must be snapshotted")
}

func TestServiceGetAggregateNormalizesSymbol(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME", "Stock to the moon")

	result, err := f.service.GetAggregate(context.Background(), "  gme ")
	require.NoError(t, err)
	assert.Equal(t, "GME", result.Symbol)
}

func TestServiceGetAggregateUntrackedSymbol(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GetAggregate(context.Background(), "NVDA")
	assert.ErrorIs(t, err, domain.ErrSymbolNotTracked)
}

func TestServiceGetAggregateNoData(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GetAggregate(context.Background(), "GME")
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestServiceGetAggregateUsesMemoryCache(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME", "Stock to the moon")

	first, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)

	// Break the snapshot store; the memory cache must still serve.
	f.snapshots.getErr = errors.New("redis down")
	second, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestServiceGetAggregatePrefersSnapshot(t *testing.T) {
	f := newFixture(t)
	snapshot := domain.AggregateResult{Symbol: "GME", MeanCompound: 0.9, SubmissionCount: 7}
	f.snapshots.snapshots["GME"] = &snapshot

	result, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)
	assert.Equal(t, snapshot, result, "snapshot must win over recompute")
}

func TestServiceGetAggregateSnapshotFailureFallsBackToCompute(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME", "Stock to the moon")
	f.snapshots.getErr = errors.New("redis down")

	result, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SubmissionCount)
}

func TestServiceGetTokenFrequencies(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME",
		"buy buy sell stocks today",
		"buy hold stocks",
	)

	counts, err := f.service.GetTokenFrequencies(context.Background(), "GME", 2)
	require.NoError(t, err)

	require.Len(t, counts, 2)
	assert.Equal(t, domain.TokenCount{Token: "buy", Count: 3}, counts[0])
	assert.Equal(t, domain.TokenCount{Token: "stocks", Count: 2}, counts[1])
}

func TestServiceGetTimeline(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME", "Stock to the moon", "Buy and hold", "Sell everything now")

	points, err := f.service.GetTimeline(context.Background(), "GME", 2)
	require.NoError(t, err)

	require.Len(t, points, 3)
	for i := 1; i < len(points); i++ {
		assert.False(t, points[i].CreatedAt.Before(points[i-1].CreatedAt), "timeline must be chronological")
	}
}

func TestServiceGetTimelineNoData(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GetTimeline(context.Background(), "GME", 0)
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestServiceListSubmissionsNoData(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ListSubmissions(context.Background(), "GME", 10)
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestServiceTrackedSymbols(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"GME", "AMC"}, f.service.TrackedSymbols())
}

func TestServiceRefresh(t *testing.T) {
	f := newFixture(t)
	f.source.submissions = submissionsFor(f.clock, "GME", "Stock to the moon", "Buy the dip")

	outcome, err := f.service.Refresh(context.Background(), "GME")
	require.NoError(t, err)

	assert.Equal(t, "GME", outcome.Symbol)
	assert.Equal(t, 2, outcome.Fetched)
	assert.Equal(t, int64(2), outcome.Stored)
	assert.Len(t, f.store.upserted, 2)
	assert.Equal(t, []string{"GME"}, f.publisher.published)
}

func TestServiceRefreshDebounced(t *testing.T) {
	f := newFixture(t)
	f.debouncer.allow = false

	_, err := f.service.Refresh(context.Background(), "GME")
	assert.ErrorIs(t, err, domain.ErrRefreshDebounced)
	assert.Zero(t, f.source.calls, "debounced refresh must not hit the source")
}

func TestServiceRefreshEmptyFetchPublishesNothing(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.service.Refresh(context.Background(), "GME")
	require.NoError(t, err)

	assert.Zero(t, outcome.Fetched)
	assert.Zero(t, outcome.Stored)
	assert.Empty(t, f.publisher.published)
}

func TestServiceRefreshUsesIncrementalCursor(t *testing.T) {
	f := newFixture(t)
	f.store.hasLatest = true
	f.store.latest = f.clock.Now().Add(-2 * time.Hour)

	_, err := f.service.Refresh(context.Background(), "GME")
	require.NoError(t, err)

	want := f.store.latest.Add(-cursorOverlap)
	assert.Equal(t, want, f.source.lastFrom, "fetch must continue from the stored cursor")
}

func TestServiceRefreshInvalidatesCaches(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME", "Stock to the moon")

	// Warm both cache layers.
	_, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)

	f.source.submissions = submissionsFor(f.clock, "GME", "Totally crashing")
	_, err = f.service.Refresh(context.Background(), "GME")
	require.NoError(t, err)

	assert.Empty(t, f.snapshots.snapshots, "snapshot must be invalidated")

	// Next read recomputes from the store.
	f.store.submissions = submissionsFor(f.clock, "GME", "one", "two", "three")
	result, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)
	assert.Equal(t, 3, result.SubmissionCount)
}

func TestServiceInvalidateLocal(t *testing.T) {
	f := newFixture(t)
	f.store.submissions = submissionsFor(f.clock, "GME", "Stock to the moon")

	_, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)

	f.service.InvalidateLocal("gme")

	// With the memory entry gone the snapshot layer serves the read.
	f.snapshots.getErr = nil
	result, err := f.service.GetAggregate(context.Background(), "GME")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SubmissionCount)
}
