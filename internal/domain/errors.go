package domain

import "errors"

var (
	ErrNoData           = errors.New("no data for symbol")
	ErrSymbolNotTracked = errors.New("symbol not tracked")
	ErrRefreshDebounced = errors.New("refresh recently triggered")
	ErrSubmissionExists = errors.New("submission already stored")
)
