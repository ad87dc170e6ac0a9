package core

import "github.com/pkg/errors"

// FieldError attaches an error message to a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a business-rule violation. Fields carries per-field
// messages when the violation is attributable; otherwise Err alone is
// rendered.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals an unrecoverable integrity problem; the API server stops
// gracefully when it sees one.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
