package export

import "codeberg.org/mutker/fansim/internal/errors"

const (
	ErrUnavailable = errors.ErrExportUnavailable
	ErrFailed      = errors.ErrExportFailed

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("export_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("export_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("export_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("export_transaction_failed")
)
