package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue marks client input that failed validation.
	ErrInvalidValue = errors.New("invalid value")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	// ErrVisionUnavailable is returned when no image analysis backend is configured.
	ErrVisionUnavailable = errors.New("vision backend unavailable")
)

// ValidationError carries the human readable message returned to clients.
// It matches ErrInvalidValue under errors.Is.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidValue }

// Invalid builds a ValidationError for field with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Error is a client-facing error whose message can be returned verbatim.
// It unwraps to one of the sentinel errors above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Msg: fmt.Sprintf(format, args...)}
}
