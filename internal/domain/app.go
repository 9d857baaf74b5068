package domain

import "context"

// RefreshOutcome reports what a refresh run did for one symbol.
type RefreshOutcome struct {
	Symbol    string `json:"symbol"`
	Fetched   int    `json:"fetched"`
	Stored    int64  `json:"stored"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// AppService is the application surface consumed by transport layers.
type AppService interface {
	GetAggregate(ctx context.Context, symbol string) (AggregateResult, error)
	GetTokenFrequencies(ctx context.Context, symbol string, limit int) ([]TokenCount, error)
	GetTimeline(ctx context.Context, symbol string, window int) ([]TimelinePoint, error)
	ListSubmissions(ctx context.Context, symbol string, limit int) ([]Submission, error)
	Refresh(ctx context.Context, symbol string) (RefreshOutcome, error)
	TrackedSymbols() []string
}

// RefreshDebouncer limits how often a symbol may be refreshed. TryAcquire
// succeeds at most once per debounce interval across all replicas.
type RefreshDebouncer interface {
	TryAcquire(ctx context.Context, symbol string) (bool, error)
}

// UpdatePublisher notifies all replicas that a symbol's aggregate changed
// and locally cached copies are stale.
type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, symbol string) error
}
