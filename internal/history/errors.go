package history

import "codeberg.org/mutker/vitalsd/internal/errors"

const (
	ErrInvalidConfig  = errors.ErrInvalidConfig
	ErrInvalidKey     = errors.ErrorCode("history_invalid_key")
	ErrNoSignals      = errors.ErrorCode("history_no_signals")
	ErrInvalidRetries = errors.ErrorCode("history_invalid_retries")
	ErrEncode         = errors.ErrorCode("history_encode_failed")
)
