package storage

import "codeberg.org/mutker/vitalsd/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig    = errors.ErrInvalidConfig
	ErrInvalidPath      = errors.ErrorCode("storage_invalid_path")
	ErrInvalidRedisAddr = errors.ErrorCode("storage_invalid_redis_addr")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("storage_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("storage_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("storage_schema_migration_failed")

	// Access Errors
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageAccess = errors.ErrorCode("storage_access_failed")
	ErrStorageClose  = errors.ErrShutdownFailed
)
