// Package dErrors carries coded domain errors across service boundaries.
// Services return these so transports can map a rejection to a concrete
// precondition without string matching.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies which precondition failed. The set is closed: every
// rejection a caller can see maps to exactly one of these.
type Code string

const (
	// CodeNotFound covers principals, requests, and location names that do
	// not resolve. Always recoverable locally (re-prompt or report).
	CodeNotFound Code = "not_found"

	// CodeUnauthorized covers role or institution mismatches. No state
	// change occurred, no retry implied.
	CodeUnauthorized Code = "unauthorized"

	// CodeValidation covers malformed or empty input; the caller should
	// re-prompt the same step.
	CodeValidation Code = "validation_failed"

	// CodeInvalidChain means a region/district/institution triple does not
	// nest correctly. Treated like validation at call sites.
	CodeInvalidChain Code = "invalid_chain"

	// CodeConflict covers duplicate registrations and concurrent terminal
	// transitions on the same request.
	CodeConflict Code = "conflict"

	// CodeIncompleteResolution rejects a terminal transition submitted
	// without both an equipment id and a narrative.
	CodeIncompleteResolution Code = "incomplete_resolution"

	// CodeInvariantViolation marks a broken domain invariant detected at
	// construction time.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal is infrastructure failure; the detail stays in logs.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Wrapped causes stay reachable through
// errors.Is / errors.As.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another coded error by code and message, so tests and call
// sites can compare against a freshly constructed value.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// New builds a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.cause
	}
	return false
}

// CodeOf returns the outermost code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// Is delegates to errors.Is so call sites can keep a single import.
func Is(err, target error) bool { return errors.Is(err, target) }
