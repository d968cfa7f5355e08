package server

import "codeberg.org/mutker/hoststat/internal/errors"

const (
	ErrListenFailed   = errors.ErrorCode("server_listen_failed")
	ErrServeFailed    = errors.ErrServeFailed
	ErrShutdownFailed = errors.ErrShutdownFailed
)
