package journal

import "codeberg.org/mutker/sensormon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDSN    = errors.ErrorCode("journal_invalid_dsn")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("journal_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("journal_schema_validation_failed")
	ErrTransactionFailed      = errors.ErrorCode("journal_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("journal_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed
	ErrClosed          = errors.ErrorCode("journal_closed")

	// Recording Errors
	ErrRecord       = errors.ErrorCode("journal_record_failed")
	ErrInvalidEntry = errors.ErrorCode("journal_invalid_entry")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
