package domain

import (
	"context"
	"time"
)

// Submission is a single Reddit submission mentioning a tracked symbol.
// Immutable once retrieved; the pipeline only ever reads it.
type Submission struct {
	ID           int64     `db:"id" json:"-"`
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Subreddit    string    `db:"subreddit" json:"subreddit"`
	Title        string    `db:"title" json:"title"`
	Score        int       `db:"score" json:"score"`
	CreatedAt    time.Time `db:"created_utc" json:"created_at"`
	FetchedAt    time.Time `db:"fetched_at" json:"-"`
}

// SubmissionSource fetches submissions from the upstream platform.
// Implementations own retrieval protocol, pagination, and rate limiting.
type SubmissionSource interface {
	FetchSubmissions(ctx context.Context, symbol string, from, to time.Time) ([]Submission, error)
}

// SubmissionStore abstracts submission persistence backed by Postgres.
type SubmissionStore interface {
	UpsertSubmissions(ctx context.Context, submissions []Submission) (int64, error)
	ListBySymbol(ctx context.Context, symbol string, since time.Time, minScore, limit int) ([]Submission, error)
	LatestCreatedAt(ctx context.Context, symbol string) (time.Time, bool, error)
	DistinctSymbols(ctx context.Context) ([]string, error)
	CountBySymbol(ctx context.Context, symbol string) (int64, error)
}
