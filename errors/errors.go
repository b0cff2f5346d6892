// Package errors provides error handling for ilsp.
//
// This package re-exports github.com/cockroachdb/errors so that every
// package wraps, annotates and inspects errors the same way:
//
//	if err != nil {
//	    return errors.Wrapf(err, "failed to read %s", path)
//	}
//
//	if errors.Is(err, errors.ErrUnreadable) {
//	    // surface as a diagnostic instead of an empty result
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New   = crdb.New
	Newf  = crdb.Newf
	Wrap  = crdb.Wrap
	Wrapf = crdb.Wrapf
	Join  = crdb.Join
)

// User-facing hints
var (
	WithHint  = crdb.WithHint
	WithHintf = crdb.WithHintf
)

// Error inspection
var (
	Is          = crdb.Is
	As          = crdb.As
	GetAllHints = crdb.GetAllHints
)

// Sentinel errors shared across ilsp.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested document or entry does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates a malformed request (bad URI, bad position)
	ErrInvalidRequest = New("invalid request")

	// ErrUnreadable indicates a source file exists in the workspace but could not be read
	ErrUnreadable = New("file could not be read")

	// ErrServiceUnavailable indicates the server is shutting down or not initialized
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsUnreadableError checks if an error is or wraps ErrUnreadable
func IsUnreadableError(err error) bool {
	return err != nil && Is(err, ErrUnreadable)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// WrapUnreadable marks err as an unreadable-file error for path
func WrapUnreadable(err error, path string) error {
	if err == nil {
		return nil
	}
	return Wrapf(Mark(err, ErrUnreadable), "read %s", path)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// Mark attaches the identity of reference to err so that errors.Is(err, reference) holds.
var Mark = crdb.Mark
