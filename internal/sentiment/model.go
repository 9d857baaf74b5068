package sentiment

import (
	"fmt"

	"github.com/drankou/go-vader/vader"

	"github.com/pscheid92/tickerpulse/internal/lexicon"
)

// Polarity carries the component scores for one piece of text. Positive,
// Negative and Neutral are proportions that sum to one, Compound is the
// normalized total in [-1, 1].
type Polarity struct {
	Positive float64
	Negative float64
	Neutral  float64
	Compound float64
}

// PolarityModel scores an already normalized text. Implementations must be
// safe for concurrent use and must not mutate shared state after
// construction.
type PolarityModel interface {
	Polarity(text string) Polarity
}

// VaderModel wraps the VADER analyzer with the merged lexicon. The merge
// happens once at construction: overrides replace base entries on collision
// and the lexicon is never written afterwards, which is what makes
// concurrent PolarityScores calls safe.
type VaderModel struct {
	analyzer *vader.SentimentIntensityAnalyzer
	lexicon  map[string]float64
}

// NewVaderModel initializes the analyzer with its stock lexicon and merges
// the given overrides into it. Overrides are expected to be validated by the
// lexicon package already.
func NewVaderModel(overrides lexicon.Overrides) (*VaderModel, error) {
	if err := lexicon.Validate(overrides); err != nil {
		return nil, err
	}

	analyzer := &vader.SentimentIntensityAnalyzer{}
	if err := analyzer.Init(); err != nil {
		return nil, fmt.Errorf("initializing vader analyzer: %w", err)
	}

	for token, polarity := range overrides {
		analyzer.LexiconMap[token] = polarity
	}

	merged := make(map[string]float64, len(analyzer.LexiconMap))
	for token, polarity := range analyzer.LexiconMap {
		merged[token] = polarity
	}

	return &VaderModel{analyzer: analyzer, lexicon: merged}, nil
}

// Polarity scores a normalized text with the merged lexicon.
func (m *VaderModel) Polarity(text string) Polarity {
	scores := m.analyzer.PolarityScores(text)
	return Polarity{
		Positive: scores["pos"],
		Negative: scores["neg"],
		Neutral:  scores["neu"],
		Compound: scores["compound"],
	}
}

// Lexicon returns a copy of the merged lexicon. Mutating the copy has no
// effect on scoring.
func (m *VaderModel) Lexicon() map[string]float64 {
	out := make(map[string]float64, len(m.lexicon))
	for token, polarity := range m.lexicon {
		out[token] = polarity
	}
	return out
}
