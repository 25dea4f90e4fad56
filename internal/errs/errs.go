// Package errs defines the closed set of error kinds the engine can raise.
// No engine component swallows an error; everything unwinds to the caller
// wrapped in one of these kinds (see spec §7).
package errs

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure so callers (a CLI, an HTTP layer) can
// map it to their own vocabulary without inspecting error strings.
type Kind string

const (
	Schema      Kind = "SchemaError"
	Validation  Kind = "ValidationError"
	Constraint  Kind = "ConstraintError"
	Transaction Kind = "TransactionError"
	Resolution  Kind = "ResolutionError"
	Storage     Kind = "StorageError"
)

// Error is the single error type every public call returns on failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
