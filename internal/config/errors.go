package config

import "codeberg.org/mutker/hoststat/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrBindFlags       = errors.ErrBindFlags
	ErrReadConfig      = errors.ErrReadConfig
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrInvalidLogLevel = errors.ErrInvalidLogLevel
)
