package errors

// ErrorCode identifies a failure kind. Codes are logged as error_code.
type ErrorCode string

// Error is a coded error, optionally carrying a cause or structured data.
type Error interface {
	error
	Code() ErrorCode
	WithData(data any) Error
	Data() any
	Unwrap() error
}

// Factory builds coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
