package domain

import (
	"context"
	"time"
)

// SentimentScore is the polarity breakdown for a single submission title.
// Positive, Negative and Neutral are proportions that sum to 1; Compound is
// the normalized overall score in [-1, 1]. Produced once, never mutated.
type SentimentScore struct {
	SubmissionID string  `json:"submission_id"`
	Compound     float64 `json:"compound"`
	Positive     float64 `json:"positive"`
	Negative     float64 `json:"negative"`
	Neutral      float64 `json:"neutral"`
}

// AggregateResult summarizes sentiment across all analyzed submissions for
// one symbol. Derived data: recomputed on demand, cached with a TTL, never
// authoritative.
type AggregateResult struct {
	Symbol           string         `json:"symbol"`
	MeanCompound     float64        `json:"mean_compound"`
	SubmissionCount  int            `json:"submission_count"`
	TokenFrequencies map[string]int `json:"token_frequencies"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// TokenCount is one row of a frequency table, ordered by the caller.
type TokenCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// TimelinePoint is one submission's sentiment on the time axis. Rolling is
// the trailing mean over the configured smoothing window.
type TimelinePoint struct {
	SubmissionID string    `json:"submission_id"`
	CreatedAt    time.Time `json:"created_at"`
	Compound     float64   `json:"compound"`
	Rolling      float64   `json:"rolling"`
}

// SnapshotStore abstracts the shared aggregate cache backed by Redis.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, symbol string) (*AggregateResult, error)
	SetSnapshot(ctx context.Context, symbol string, result AggregateResult) error
	Invalidate(ctx context.Context, symbol string) error
}
