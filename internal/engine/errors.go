package engine

import (
	"errors"
	"fmt"
)

// ErrConflictAbort means a protected default was not approved for removal.
// The add that hit it changed nothing.
var ErrConflictAbort = errors.New("conflict with default constraint not overridden")

// SessionError represents misuse of a session: an unknown record, a filter
// that names things the registry does not have, or a failed journal write.
type SessionError struct {
	// Code identifies the error category.
	Code SessionErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record, when there is one.
	RecordID string

	// Err is the underlying cause.
	Err error
}

// SessionErrorCode categorizes session errors.
type SessionErrorCode string

const (
	// ErrCodeUnknownRecord indicates no stored record has the given ID.
	ErrCodeUnknownRecord SessionErrorCode = "UNKNOWN_RECORD"

	// ErrCodeInvalidFilter indicates a display, item or where filter is unusable.
	ErrCodeInvalidFilter SessionErrorCode = "INVALID_FILTER"

	// ErrCodeJournal indicates the journal could not be written or read.
	ErrCodeJournal SessionErrorCode = "JOURNAL_FAILED"
)

// Error implements the error interface.
func (e *SessionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (record=%s)", e.RecordID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsConflictAbort returns true if err reports a declined override.
// Uses errors.Is to handle wrapped errors.
func IsConflictAbort(err error) bool {
	return errors.Is(err, ErrConflictAbort)
}

// IsUnknownRecord returns true if err reports a missing record.
func IsUnknownRecord(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnknownRecord
	}
	return false
}

// IsInvalidFilter returns true if err reports an unusable solution filter.
func IsInvalidFilter(err error) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidFilter
	}
	return false
}

func newFilterError(format string, args ...any) *SessionError {
	return &SessionError{Code: ErrCodeInvalidFilter, Message: fmt.Sprintf(format, args...)}
}
