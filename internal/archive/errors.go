package archive

import "codeberg.org/mutker/hoststat/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("archive_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("archive_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("archive_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("archive_schema_migration_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
	ErrInsertFailed = errors.ErrorCode("archive_insert_failed")
	ErrQueryFailed  = errors.ErrorCode("archive_query_failed")
	ErrEncodeFailed = errors.ErrorCode("archive_encode_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
