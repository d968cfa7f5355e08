package persist

import "codeberg.org/mutker/hoststat/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrCreateDir     = errors.ErrorCode("persist_create_dir_failed")
	ErrRotate        = errors.ErrorCode("persist_rotate_failed")
	ErrEncode        = errors.ErrorCode("persist_encode_failed")
	ErrAppend        = errors.ErrorCode("persist_append_failed")
	ErrRead          = errors.ErrorCode("persist_read_failed")
	ErrCorruptRecord = errors.ErrorCode("persist_corrupt_record")
	ErrQuarantine    = errors.ErrorCode("persist_quarantine_failed")
)
