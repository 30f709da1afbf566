package errors

const (
	// System errors
	ErrInternal       ErrorCode = "internal_error"
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrConflict       ErrorCode = "write_conflict"

	// Configuration errors
	ErrInvalidConfig    ErrorCode = "invalid_configuration"
	ErrBindFlags        ErrorCode = "bind_flags_failed"
	ErrReadConfig       ErrorCode = "read_config_failed"
	ErrInvalidListen    ErrorCode = "invalid_listen_address"
	ErrInvalidBackend   ErrorCode = "invalid_storage_backend"
	ErrInvalidRetention ErrorCode = "invalid_retention"
	ErrInvalidLogLevel  ErrorCode = "invalid_log_level"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrInitApp        ErrorCode = "init_app_failed"
	ErrOpenStorage    ErrorCode = "open_storage_failed"
	ErrServe          ErrorCode = "serve_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
)

var messages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrConflict:         "Concurrent write conflict",
	ErrInvalidConfig:    "Invalid configuration",
	ErrBindFlags:        "Failed to parse flags",
	ErrReadConfig:       "Failed to read config file",
	ErrInvalidListen:    "Invalid listen address",
	ErrInvalidBackend:   "Unknown storage backend",
	ErrInvalidRetention: "History retention must be positive",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrInitFailed:       "Initialization failed",
	ErrInitApp:          "Failed to initialize application",
	ErrOpenStorage:      "Failed to open storage",
	ErrServe:            "HTTP server failed",
	ErrShutdownFailed:   "Shutdown failed",
}

// Message returns the human readable text for code. Codes without an entry,
// such as package-local ones, read as the code itself.
func Message(code ErrorCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return string(code)
}
