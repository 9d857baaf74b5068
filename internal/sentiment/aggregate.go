package sentiment

import (
	"sort"

	"github.com/pscheid92/tickerpulse/internal/domain"
)

// Aggregate folds per-title scores and token lists into the symbol-level
// result. The function is pure: identical inputs yield identical outputs,
// nothing is read from the clock and the inputs are not mutated. GeneratedAt
// is left zero for the caller to stamp.
//
// An empty score batch has no meaningful mean and returns ErrNoData.
func Aggregate(symbol string, scores []domain.SentimentScore, tokens [][]string) (domain.AggregateResult, error) {
	if len(scores) == 0 {
		return domain.AggregateResult{}, domain.ErrNoData
	}

	var sum float64
	for _, score := range scores {
		sum += score.Compound
	}

	frequencies := make(map[string]int)
	for _, titleTokens := range tokens {
		for _, token := range titleTokens {
			frequencies[token]++
		}
	}

	return domain.AggregateResult{
		Symbol:           symbol,
		MeanCompound:     sum / float64(len(scores)),
		SubmissionCount:  len(scores),
		TokenFrequencies: frequencies,
	}, nil
}

// TopTokens ranks frequencies and returns at most n entries, highest count
// first. Equal counts are ordered by token so the ranking is deterministic.
// A non-positive n returns the full ranking.
func TopTokens(frequencies map[string]int, n int) []domain.TokenCount {
	ranked := make([]domain.TokenCount, 0, len(frequencies))
	for token, count := range frequencies {
		ranked = append(ranked, domain.TokenCount{Token: token, Count: count})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Token < ranked[j].Token
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Timeline pairs scores with their submissions, orders them by creation
// time and attaches a rolling mean of the compound over the given window.
// Partial windows at the start average the points available, so the series
// has no gaps. scores[i] must belong to submissions[i], as produced by
// ScoreAll.
func Timeline(submissions []domain.Submission, scores []domain.SentimentScore, window int) []domain.TimelinePoint {
	if window < 1 {
		window = 1
	}

	n := min(len(submissions), len(scores))
	points := make([]domain.TimelinePoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, domain.TimelinePoint{
			SubmissionID: scores[i].SubmissionID,
			CreatedAt:    submissions[i].CreatedAt,
			Compound:     scores[i].Compound,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].CreatedAt.Before(points[j].CreatedAt)
	})

	var windowSum float64
	for i := range points {
		windowSum += points[i].Compound
		if i >= window {
			windowSum -= points[i-window].Compound
		}
		points[i].Rolling = windowSum / float64(min(i+1, window))
	}
	return points
}
