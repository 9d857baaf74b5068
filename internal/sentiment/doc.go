// Package sentiment implements the scoring and aggregation pipeline.
//
// The Scorer turns one title into component scores via a PolarityModel whose
// lexicon is fixed at construction. Aggregate folds score batches into the
// per-symbol mean and token frequencies. Both are pure given their inputs;
// the ResultCache is the only mutable state and guards itself.
package sentiment
