package store

import (
	"errors"
	"fmt"
)

// ErrorCode classifies store failures for callers.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeInvalid           ErrorCode = "INVALID"
	CodeStorage           ErrorCode = "STORAGE_FAILURE"
	CodeMigration         ErrorCode = "MIGRATION_FAILURE"
)

// Error is returned from every exported store operation that fails.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error carrying the same code, so errors.Is(err, ErrNotFound)
// works for every not-found failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// storageErr wraps a database failure. Errors that are already classified
// pass through untouched.
func storageErr(message string, err error) error {
	if err == nil {
		return nil
	}
	var sErr *Error
	if errors.As(err, &sErr) {
		return err
	}
	return wrapError(CodeStorage, message, err)
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrInvalidDraft      = &Error{Code: CodeInvalid, Message: "invalid draft"}
	ErrStorage           = &Error{Code: CodeStorage, Message: "storage failure"}
	ErrMigration         = &Error{Code: CodeMigration, Message: "migration failure"}
)

// HasCode reports whether err carries the given classification.
func HasCode(err error, code ErrorCode) bool {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
