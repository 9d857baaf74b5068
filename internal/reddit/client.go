// Package reddit implements the Pushshift submission source. It pages
// backwards through search results with a before-cursor, rate-limits and
// retries requests, and maps the wire payload onto domain submissions.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pscheid92/tickerpulse/internal/domain"
	"github.com/pscheid92/tickerpulse/internal/metrics"
	"github.com/pscheid92/tickerpulse/internal/retry"
)

const (
	submissionEndpoint = "/reddit/search/submission/"
	submissionFields   = "id,created_utc,subreddit,title,score"
	requestTimeout     = 15 * time.Second

	// Cursor step (in seconds) when a page comes back empty. Pushshift
	// windows with no matches are common for thin tickers; stepping the
	// before-cursor back 5 hours skips them without giving up on the range.
	emptyPageDecay = int64(18000)
)

// Client queries the Pushshift submission search API.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	pageSize    int
	maxPages    int
	retryPolicy retry.Policy
}

var _ domain.SubmissionSource = (*Client)(nil)

// NewClient creates a Pushshift client. rps is the sustained request rate;
// pageSize and maxPages bound a single fetch run.
func NewClient(baseURL string, rps float64, pageSize, maxPages int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		pageSize:   pageSize,
		maxPages:   maxPages,
		retryPolicy: retry.Policy{
			MaxAttempts:      4,
			InitialBackoff:   500 * time.Millisecond,
			RateLimitBackoff: 5 * time.Second,
			MaxBackoff:       10 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Pushshift request failed, retrying",
					"attempt", attempt,
					"backoff", backoff,
					"error", err,
				)
			},
		},
	}
}

// apiError is a non-2xx Pushshift response.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("pushshift returned status %d: %s", e.StatusCode, e.Body)
}

type searchResponse struct {
	Data []submissionPayload `json:"data"`
}

type submissionPayload struct {
	ID         string `json:"id"`
	CreatedUTC int64  `json:"created_utc"`
	Subreddit  string `json:"subreddit"`
	Title      string `json:"title"`
	Score      int    `json:"score"`
}

func (p submissionPayload) toDomain(symbol string, fetchedAt time.Time) domain.Submission {
	return domain.Submission{
		SubmissionID: p.ID,
		Symbol:       symbol,
		Subreddit:    p.Subreddit,
		Title:        p.Title,
		Score:        p.Score,
		CreatedAt:    time.Unix(p.CreatedUTC, 0).UTC(),
		FetchedAt:    fetchedAt,
	}
}

// FetchSubmissions pages backwards from `to` towards `from`, newest first.
// The cursor follows the last submission of each page; empty pages step the
// cursor back by emptyPageDecay instead of terminating the run. A failure
// after the first page returns the submissions collected so far.
func (c *Client) FetchSubmissions(ctx context.Context, symbol string, from, to time.Time) ([]domain.Submission, error) {
	before := to.Unix()
	after := from.Unix()
	fetchedAt := time.Now().UTC()

	var submissions []domain.Submission
	pages := 0

	for pages < c.maxPages && before > after {
		payloads, err := c.fetchPage(ctx, symbol, before, after)
		if err != nil {
			if len(submissions) == 0 {
				return nil, fmt.Errorf("fetch submissions for %s failed: %w", symbol, err)
			}
			// Keep what earlier pages already produced; the next refresh
			// run re-covers the gap because upserts are idempotent.
			slog.Warn("Pushshift pagination aborted, keeping partial result",
				"symbol", symbol,
				"fetched", len(submissions),
				"error", err,
			)
			break
		}
		pages++

		if len(payloads) == 0 {
			before -= emptyPageDecay
			continue
		}

		for _, payload := range payloads {
			submissions = append(submissions, payload.toDomain(symbol, fetchedAt))
		}
		before = payloads[len(payloads)-1].CreatedUTC
	}

	metrics.SubmissionsFetchedTotal.WithLabelValues(symbol).Add(float64(len(submissions)))
	slog.Info("Fetched submissions",
		"symbol", symbol,
		"count", len(submissions),
		"pages", pages,
	)

	return submissions, nil
}

func (c *Client) fetchPage(ctx context.Context, symbol string, before, after int64) ([]submissionPayload, error) {
	return retry.Do(ctx, c.retryPolicy, classifyFetchError, func() ([]submissionPayload, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.doRequest(ctx, symbol, before, after)
	})
}

func (c *Client) doRequest(ctx context.Context, symbol string, before, after int64) ([]submissionPayload, error) {
	params := url.Values{}
	params.Set("title", symbol)
	params.Set("sort_type", "created_utc")
	params.Set("sort", "desc")
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("fields", submissionFields)
	params.Set("before", strconv.FormatInt(before, 10))
	params.Set("after", strconv.FormatInt(after, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+submissionEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pushshift request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.PushshiftRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PushshiftRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("pushshift request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.PushshiftRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read pushshift response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.PushshiftRequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode != http.StatusOK:
		metrics.PushshiftRequestsTotal.WithLabelValues("error").Inc()
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		metrics.PushshiftRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode pushshift response: %w", err)
	}

	metrics.PushshiftRequestsTotal.WithLabelValues("success").Inc()
	return result.Data, nil
}

// classifyFetchError decides how a failed page request is retried: 429s back
// off on the rate-limit schedule, 5xx and transport errors retry normally,
// and any other API response aborts the run.
func classifyFetchError(err error) retry.Action {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case apiErr.StatusCode >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	return retry.Retry
}
