// Package text turns raw Reddit submission titles into the lowercase token
// stream the scorer and the frequency counter consume. The pipeline is fixed:
// lowercase, strip URLs, strip everything outside [0-9a-z ], split on
// whitespace, drop stopwords and single-character leftovers. Running the
// pipeline over its own output yields the same tokens.
package text

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	urlPattern         = regexp.MustCompile(`https?://\S+`)
	punctuationPattern = regexp.MustCompile(`[^0-9a-z ]`)
)

//go:embed stopwords.yaml
var defaultStopwords []byte

// Preprocessor normalizes titles with a fixed stopword set. Safe for
// concurrent use, the set is never mutated after construction.
type Preprocessor struct {
	stopwords map[string]struct{}
}

// NewPreprocessor builds a preprocessor around the given stopword set.
func NewPreprocessor(stopwords []string) *Preprocessor {
	set := make(map[string]struct{}, len(stopwords))
	for _, word := range stopwords {
		set[strings.ToLower(strings.TrimSpace(word))] = struct{}{}
	}
	return &Preprocessor{stopwords: set}
}

// DefaultPreprocessor builds a preprocessor from the embedded stopword set.
func DefaultPreprocessor() (*Preprocessor, error) {
	words, err := DefaultStopwords()
	if err != nil {
		return nil, err
	}
	return NewPreprocessor(words), nil
}

// DefaultStopwords returns the embedded stopword list.
func DefaultStopwords() ([]string, error) {
	words, err := parseStopwords(defaultStopwords)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded stopwords: %w", err)
	}
	return words, nil
}

// LoadStopwordsFile reads additional stopwords from a YAML file holding a
// flat list of words, same shape as the embedded defaults.
func LoadStopwordsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stopwords from %s: %w", path, err)
	}
	words, err := parseStopwords(data)
	if err != nil {
		return nil, fmt.Errorf("parsing stopwords from %s: %w", path, err)
	}
	return words, nil
}

func parseStopwords(data []byte) ([]string, error) {
	var words []string
	if err := yaml.Unmarshal(data, &words); err != nil {
		return nil, err
	}
	return words, nil
}

// Preprocess runs the normalization pipeline over a single title. The result
// carries only lowercase alphanumeric tokens of length two or more that are
// not stopwords. An empty or all-noise title yields an empty slice.
func (p *Preprocessor) Preprocess(title string) []string {
	lowered := strings.ToLower(title)
	stripped := urlPattern.ReplaceAllString(lowered, "")
	stripped = punctuationPattern.ReplaceAllString(stripped, "")

	fields := strings.Fields(stripped)
	tokens := make([]string, 0, len(fields))
	for _, token := range fields {
		if len(token) <= 1 {
			continue
		}
		if _, found := p.stopwords[token]; found {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// IsStopword reports whether the preprocessor drops the given token.
func (p *Preprocessor) IsStopword(token string) bool {
	_, found := p.stopwords[strings.ToLower(token)]
	return found
}
