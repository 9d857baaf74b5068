// Package lexicon loads and validates polarity overrides that are merged
// into the base VADER lexicon before scoring. The embedded defaults carry
// the finance slang Reddit titles lean on; operators can replace them with
// their own YAML file.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
)

// Polarity bounds of the VADER scale. An override outside this range is a
// configuration mistake and is rejected, never clamped.
const (
	MinPolarity = -4.0
	MaxPolarity = 4.0
)

//go:embed defaults.yaml
var defaultOverrides []byte

// Overrides maps a token to the polarity it carries in the merged lexicon.
// On collision with a base entry the override wins.
type Overrides map[string]float64

// Default returns the embedded financial jargon overrides.
func Default() (Overrides, error) {
	overrides, err := Parse(defaultOverrides)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded lexicon overrides: %w", err)
	}
	return overrides, nil
}

// LoadFile reads polarity overrides from a YAML file. The file holds a flat
// mapping of token to polarity, same shape as the embedded defaults.
func LoadFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon overrides from %s: %w", path, err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing lexicon overrides from %s: %w", path, err)
	}
	return overrides, nil
}

// Parse decodes YAML overrides and validates every entry.
func Parse(data []byte) (Overrides, error) {
	var overrides Overrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, apperrors.ValidationError("lexicon overrides are not a flat token to polarity mapping").
			WithField("parse_error", err.Error())
	}
	if err := Validate(overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// Validate checks that every override token is non-empty and its polarity
// sits inside the VADER scale.
func Validate(overrides Overrides) error {
	for token, polarity := range overrides {
		if token == "" {
			return apperrors.ValidationError("lexicon override token must not be empty")
		}
		if polarity < MinPolarity || polarity > MaxPolarity {
			return apperrors.ValidationError("lexicon override polarity outside VADER scale").
				WithField("token", token).
				WithField("polarity", polarity).
				WithField("min", MinPolarity).
				WithField("max", MaxPolarity)
		}
	}
	return nil
}
