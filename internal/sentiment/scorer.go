package sentiment

import (
	"context"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/tickerpulse/internal/domain"
	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
	"github.com/pscheid92/tickerpulse/internal/metrics"
	"github.com/pscheid92/tickerpulse/internal/text"
)

// Scorer turns raw submission titles into sentiment scores. Model and
// preprocessor are fixed at construction and never swapped, so a Scorer is
// safe to share across goroutines.
type Scorer struct {
	model        PolarityModel
	preprocessor *text.Preprocessor
	workers      int
}

// NewScorer builds a scorer around a polarity model and a preprocessor.
func NewScorer(model PolarityModel, preprocessor *text.Preprocessor) *Scorer {
	return &Scorer{
		model:        model,
		preprocessor: preprocessor,
		workers:      runtime.GOMAXPROCS(0),
	}
}

// Score normalizes one title and scores the remaining tokens. Titles that
// normalize to nothing (empty, all noise, all stopwords) are neutral with a
// compound of exactly zero. Titles that are not valid UTF-8 are rejected
// with a validation error, never silently coerced.
func (s *Scorer) Score(submissionID, title string) (domain.SentimentScore, error) {
	timer := prometheus.NewTimer(metrics.ScoreDuration)
	defer timer.ObserveDuration()

	if !utf8.ValidString(title) {
		return domain.SentimentScore{}, apperrors.ValidationError("title is not valid UTF-8").
			WithField("submission_id", submissionID)
	}

	tokens := s.preprocessor.Preprocess(title)
	if len(tokens) == 0 {
		return neutralScore(submissionID), nil
	}

	polarity := s.model.Polarity(strings.Join(tokens, " "))
	return domain.SentimentScore{
		SubmissionID: submissionID,
		Compound:     polarity.Compound,
		Positive:     polarity.Positive,
		Negative:     polarity.Negative,
		Neutral:      polarity.Neutral,
	}, nil
}

// ScoreAll scores a batch of submissions concurrently. The result keeps the
// input order: scores[i] belongs to submissions[i]. The first scoring error
// cancels the remaining work.
func (s *Scorer) ScoreAll(ctx context.Context, submissions []domain.Submission) ([]domain.SentimentScore, error) {
	scores := make([]domain.SentimentScore, len(submissions))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for i, submission := range submissions {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score, err := s.Score(submission.SubmissionID, submission.Title)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func neutralScore(submissionID string) domain.SentimentScore {
	return domain.SentimentScore{SubmissionID: submissionID, Neutral: 1}
}
