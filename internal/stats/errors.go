package stats

import "codeberg.org/mutker/hoststat/internal/errors"

const (
	ErrEmptyBatch = errors.ErrorCode("stats_empty_batch")
)
