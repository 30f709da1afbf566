package errors

import (
	"errors"
	"fmt"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type codedError struct {
	code  ErrorCode
	text  string
	cause error
	data  any
}

func (e *codedError) Error() string {
	text := e.text
	if text == "" {
		text = Message(e.code)
	}

	switch {
	case e.data != nil:
		return fmt.Sprintf("%s: %v", text, e.data)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", text, e.cause)
	default:
		return text
	}
}

func (e *codedError) Code() ErrorCode { return e.code }
func (e *codedError) Data() any       { return e.data }
func (e *codedError) Unwrap() error   { return e.cause }

func (e *codedError) WithData(data any) Error {
	c := *e
	c.data = data
	return &c
}

// Is reports whether target is a bare error of the same code, so
// errors.Is(err, New().New(code)) tests the code of err.
func (e *codedError) Is(target error) bool {
	t, ok := target.(*codedError)
	return ok && t.code == e.code && t.cause == nil && t.data == nil
}

type factory struct{}

func (factory) New(code ErrorCode) Error {
	return &codedError{code: code}
}

func (factory) Wrap(code ErrorCode, err error) Error {
	return &codedError{code: code, cause: err}
}

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &codedError{code: code, text: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &codedError{code: code, data: data}
}

// New returns the error Factory.
func New() Factory {
	return factory{}
}

// CodeOf returns the code of the outermost coded error in err's chain, or
// ErrInternal if there is none.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ErrInternal
}
