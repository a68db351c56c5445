package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown deriver, classifier or filter type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Decode Errors.

	// ErrUnsupportedVersion indicates an unrecognised record header or format version.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrCountMismatch indicates the hierarchy counts do not sum consistently.
	ErrCountMismatch = errors.New("count mismatch")

	// ErrFieldDecode indicates a columnar field could not be decoded.
	ErrFieldDecode = errors.New("field decode error")

	// Derive Errors.

	// ErrClassificationUnavailable indicates a classifier could not assign
	// a code to a residue. Derivers surface it as the 'X' sentinel.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrDerive indicates a deriver failed for a chain.
	ErrDerive = errors.New("derive failed")

	// Source Errors.

	// ErrSource indicates a record source reported a failure.
	ErrSource = errors.New("source error")

	// ErrSourceClosed indicates the source has been closed.
	ErrSourceClosed = errors.New("source closed")

	// ErrSinkClosed indicates a write to a closed sink.
	ErrSinkClosed = errors.New("sink closed")

	// ErrRateLimited indicates the remote rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ErrorKind classifies a per-record failure in the run manifest.
type ErrorKind string

// Manifest error kinds.
const (
	KindUnsupportedVersion ErrorKind = "UnsupportedVersion"
	KindCountMismatch      ErrorKind = "CountMismatch"
	KindFieldDecode        ErrorKind = "FieldDecodeError"
	KindDerive             ErrorKind = "DeriveError"
	KindSource             ErrorKind = "SourceError"
	KindUnknown            ErrorKind = "Unknown"
)

// DecodeError describes why a raw record could not be decoded.
// Field is empty when the failure is not tied to a single column.
type DecodeError struct {
	Kind  ErrorKind
	Field string
	Msg   string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	s := string(e.Kind)
	if e.Field != "" {
		s += " [" + e.Field + "]"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrUnsupportedVersion:
		return e.Kind == KindUnsupportedVersion
	case ErrCountMismatch:
		return e.Kind == KindCountMismatch
	case ErrFieldDecode:
		return e.Kind == KindFieldDecode
	}
	return false
}

// NewDecodeError creates a DecodeError with a formatted message.
func NewDecodeError(kind ErrorKind, field, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// KindOf maps an error to its manifest kind.
func KindOf(err error) ErrorKind {
	var de *DecodeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &de):
		return de.Kind
	case errors.Is(err, ErrDerive):
		return KindDerive
	case errors.Is(err, ErrSource):
		return KindSource
	default:
		return KindUnknown
	}
}
