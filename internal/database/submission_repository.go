package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/tickerpulse/internal/domain"
)

// submissionColumns must match the Scan order in scanSubmission.
const submissionColumns = `id, submission_id, symbol, subreddit, title, score, created_utc, fetched_at`

// SubmissionRepo implements domain.SubmissionStore backed by PostgreSQL.
type SubmissionRepo struct {
	pool *pgxpool.Pool
}

var _ domain.SubmissionStore = (*SubmissionRepo)(nil)

// NewSubmissionRepo creates a SubmissionRepo from the shared pool.
func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var s domain.Submission
	err := row.Scan(
		&s.ID, &s.SubmissionID, &s.Symbol, &s.Subreddit,
		&s.Title, &s.Score, &s.CreatedAt, &s.FetchedAt,
	)
	return s, err
}

const upsertSubmissionSQL = `
	INSERT INTO submissions (submission_id, symbol, subreddit, title, score, created_utc, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (submission_id) DO UPDATE SET
		score = EXCLUDED.score,
		fetched_at = EXCLUDED.fetched_at`

// UpsertSubmissions writes a batch in one round trip. Re-fetched rows keep
// their identity; only the vote score and fetch time move. Returns the
// number of rows written.
func (r *SubmissionRepo) UpsertSubmissions(ctx context.Context, submissions []domain.Submission) (int64, error) {
	if len(submissions) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, submission := range submissions {
		batch.Queue(upsertSubmissionSQL,
			submission.SubmissionID, submission.Symbol, submission.Subreddit,
			submission.Title, submission.Score, submission.CreatedAt, submission.FetchedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var written int64
	for range submissions {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("failed to upsert submission: %w", err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// ListBySymbol returns a symbol's submissions created at or after since with
// at least minScore upvotes, newest first. A non-positive limit means no
// limit (LIMIT NULL below).
func (r *SubmissionRepo) ListBySymbol(ctx context.Context, symbol string, since time.Time, minScore, limit int) ([]domain.Submission, error) {
	if limit < 0 {
		limit = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE symbol = $1 AND created_utc >= $2 AND score >= $3
		ORDER BY created_utc DESC
		LIMIT NULLIF($4, 0)
	`, symbol, since, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]domain.Submission, 0)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}
	return submissions, nil
}

// LatestCreatedAt returns the newest creation time stored for a symbol. The
// second return is false when no rows exist yet.
func (r *SubmissionRepo) LatestCreatedAt(ctx context.Context, symbol string) (time.Time, bool, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT max(created_utc) FROM submissions WHERE symbol = $1`, symbol,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest submission time: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// DistinctSymbols lists every symbol that has at least one stored submission.
func (r *SubmissionRepo) DistinctSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT symbol FROM submissions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	symbols := make([]string, 0)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	return symbols, nil
}

// CountBySymbol returns how many submissions are stored for a symbol.
func (r *SubmissionRepo) CountBySymbol(ctx context.Context, symbol string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM submissions WHERE symbol = $1`, symbol,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}
