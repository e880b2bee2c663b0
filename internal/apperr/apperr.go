// Package apperr defines the stable error taxonomy shared across the
// pipeline, stores, and HTTP layer. Every error that crosses the service
// boundary carries a machine-readable Kind; the HTTP layer maps kinds to
// status codes and never exposes wrapped internal detail.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable classification of a failure.
type Kind string

const (
	// KindValidation marks user-correctable input faults (bad file type or size).
	KindValidation Kind = "VALIDATION_ERROR"
	// KindTimeout marks an inference call that exceeded its round-trip bound.
	KindTimeout Kind = "INFERENCE_TIMEOUT"
	// KindService marks a non-success or malformed inference response.
	KindService Kind = "INFERENCE_UNAVAILABLE"
	// KindClassification marks an unexpected label from the trusted inference upstream.
	KindClassification Kind = "CLASSIFICATION_ERROR"
	// KindStorage marks an artifact I/O fault.
	KindStorage Kind = "STORAGE_ERROR"
	// KindNotFound covers both truly absent records and records owned by
	// someone else; callers must not be able to tell the two apart.
	KindNotFound Kind = "NOT_FOUND"
	// KindPersistence marks a database fault after successful inference.
	KindPersistence Kind = "PERSISTENCE_ERROR"
)

// Error annotates an underlying error with a Kind and a safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// New builds a taxonomy error with no underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap annotates err with a kind and safe message. Returns nil for nil err.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the safe, user-facing message for err, falling back
// to a generic message when err is not a taxonomy error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
