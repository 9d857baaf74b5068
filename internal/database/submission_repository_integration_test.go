package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/tickerpulse/internal/domain"
)

func testSubmission(id string, symbol string, score int, createdAt time.Time) domain.Submission {
	return domain.Submission{
		SubmissionID: id,
		Symbol:       symbol,
		Subreddit:    "wallstreetbets",
		Title:        fmt.Sprintf("title for %s", id),
		Score:        score,
		CreatedAt:    createdAt,
		FetchedAt:    createdAt.Add(time.Minute),
	}
}

func TestUpsertSubmissions_Insert(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)
	ctx := context.Background()

	base := time.Date(2021, 2, 1, 10, 0, 0, 0, time.UTC)
	written, err := repo.UpsertSubmissions(ctx, []domain.Submission{
		testSubmission("abc1", "GME", 120, base),
		testSubmission("abc2", "GME", 45, base.Add(time.Hour)),
		testSubmission("abc3", "AMC", 80, base.Add(2*time.Hour)),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(3), written)

	count, err := repo.CountBySymbol(ctx, "GME")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpsertSubmissions_ConflictUpdatesScore(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)
	ctx := context.Background()

	base := time.Date(2021, 2, 1, 10, 0, 0, 0, time.UTC)
	_, err := repo.UpsertSubmissions(ctx, []domain.Submission{
		testSubmission("abc1", "GME", 120, base),
	})
	require.NoError(t, err)

	// Same submission fetched again later with more upvotes.
	updated := testSubmission("abc1", "GME", 300, base)
	updated.FetchedAt = base.Add(time.Hour)

	written, err := repo.UpsertSubmissions(ctx, []domain.Submission{updated})
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	// Still one row, carrying the new score.
	count, err := repo.CountBySymbol(ctx, "GME")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	listed, err := repo.ListBySymbol(ctx, "GME", base.Add(-time.Hour), 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 300, listed[0].Score)
	assert.Equal(t, "abc1", listed[0].SubmissionID)
}

func TestUpsertSubmissions_EmptyBatch(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)

	written, err := repo.UpsertSubmissions(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), written)
}

func TestListBySymbol_FiltersAndOrders(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)
	ctx := context.Background()

	base := time.Date(2021, 2, 1, 10, 0, 0, 0, time.UTC)
	_, err := repo.UpsertSubmissions(ctx, []domain.Submission{
		testSubmission("old-low", "GME", 5, base.Add(-48*time.Hour)),
		testSubmission("old-high", "GME", 90, base.Add(-48*time.Hour)),
		testSubmission("new-low", "GME", 3, base),
		testSubmission("new-high", "GME", 150, base.Add(time.Hour)),
		testSubmission("other", "AMC", 999, base),
	})
	require.NoError(t, err)

	// Min-score filter plus time window, newest first.
	listed, err := repo.ListBySymbol(ctx, "GME", base.Add(-24*time.Hour), 20, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "new-high", listed[0].SubmissionID)

	// Whole history for the symbol, no score filter.
	listed, err = repo.ListBySymbol(ctx, "GME", base.Add(-72*time.Hour), 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 4)
	assert.Equal(t, "new-high", listed[0].SubmissionID, "newest first")

	// Limit caps the result.
	listed, err = repo.ListBySymbol(ctx, "GME", base.Add(-72*time.Hour), 0, 2)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestListBySymbol_Empty(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)

	listed, err := repo.ListBySymbol(context.Background(), "NOPE", time.Time{}.Add(time.Hour), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestLatestCreatedAt(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)
	ctx := context.Background()

	// No rows yet.
	_, found, err := repo.LatestCreatedAt(ctx, "GME")
	require.NoError(t, err)
	assert.False(t, found, "empty table has no latest time")

	base := time.Date(2021, 2, 1, 10, 0, 0, 0, time.UTC)
	_, err = repo.UpsertSubmissions(ctx, []domain.Submission{
		testSubmission("abc1", "GME", 10, base),
		testSubmission("abc2", "GME", 10, base.Add(3*time.Hour)),
		testSubmission("abc3", "AMC", 10, base.Add(9*time.Hour)),
	})
	require.NoError(t, err)

	latest, found, err := repo.LatestCreatedAt(ctx, "GME")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, latest.Equal(base.Add(3*time.Hour)), "latest must ignore other symbols")
}

func TestDistinctSymbols(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)
	ctx := context.Background()

	symbols, err := repo.DistinctSymbols(ctx)
	require.NoError(t, err)
	assert.Empty(t, symbols)

	base := time.Date(2021, 2, 1, 10, 0, 0, 0, time.UTC)
	_, err = repo.UpsertSubmissions(ctx, []domain.Submission{
		testSubmission("abc1", "TSLA", 10, base),
		testSubmission("abc2", "GME", 10, base),
		testSubmission("abc3", "GME", 10, base.Add(time.Hour)),
	})
	require.NoError(t, err)

	symbols, err = repo.DistinctSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GME", "TSLA"}, symbols)
}

func TestCountBySymbol_Empty(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewSubmissionRepo(pool)

	count, err := repo.CountBySymbol(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
