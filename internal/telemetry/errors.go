package telemetry

import "codeberg.org/mutker/vitalsd/internal/errors"

var errFactory = errors.New()

const (
	ErrRegister = errors.ErrorCode("telemetry_register_failed")
)
