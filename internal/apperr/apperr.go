// Package apperr defines the error kinds surfaced by the schedule store and
// the sync orchestrator.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an application error.
type Kind string

const (
	// KindValidation marks invalid entity data. Never retried.
	KindValidation Kind = "validation"

	// KindNotFound marks a reference to a missing or archived record.
	KindNotFound Kind = "not_found"

	// KindInvalidState marks an illegal state transition, including any
	// mutation of a seeded record.
	KindInvalidState Kind = "invalid_state"

	// KindOffline marks a sync attempted without connectivity.
	KindOffline Kind = "offline"

	// KindSyncFailure marks a remote reconciliation that was attempted and failed.
	KindSyncFailure Kind = "sync_failure"
)

// Error is the error type returned for every Kind.
type Error struct {
	Kind    Kind
	Message string
	// ID is the record the error refers to, if any.
	ID string
	// Err is the underlying cause for sync failures.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error for the given id.
func NotFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: "record not found", ID: id}
}

// InvalidState returns an invalid-state error for the given id.
func InvalidState(id, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...), ID: id}
}

// Offline returns the error for a sync attempted with no connectivity.
func Offline() *Error {
	return &Error{Kind: KindOffline, Message: "no network connectivity"}
}

// SyncFailure wraps a failed remote reconciliation.
func SyncFailure(cause error) *Error {
	return &Error{Kind: KindSyncFailure, Message: "remote reconciliation failed", Err: cause}
}

// KindOf reports the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }
func IsOffline(err error) bool      { return KindOf(err) == KindOffline }
func IsSyncFailure(err error) bool  { return KindOf(err) == KindSyncFailure }
