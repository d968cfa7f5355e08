package updater

import "codeberg.org/mutker/hoststat/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrConsolidate     = errors.ErrorCode("updater_consolidate_failed")
)
