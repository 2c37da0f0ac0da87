package sdb

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a database failure. The set is closed; callers
// can switch over it exhaustively.
type ErrorKind int

// Error kinds, ordered roughly by lifecycle: configuration problems
// first, then connection establishment, then statement execution.
const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindConnection
	KindAuthentication
	KindTimeout
	KindNotFound
	KindInvalidArgument
	KindTransaction
	KindQuery
	KindExecution
	KindInternal
)

// String returns the stable textual name of the kind, as emitted in
// structured events.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "Configuration"
	case KindConnection:
		return "Connection"
	case KindAuthentication:
		return "Authentication"
	case KindTimeout:
		return "Timeout"
	case KindNotFound:
		return "NotFound"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindTransaction:
		return "Transaction"
	case KindQuery:
		return "Query"
	case KindExecution:
		return "Execution"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the failure record returned by every fallible operation.
//
// Code carries the backend's numeric error code (0 when none).
// Retryable is advisory: true suggests the operation may succeed if
// repeated, typically for Connection, Timeout and Internal kinds.
// Callers may retry other kinds at their discretion.
type Error struct {
	Code      int
	Message   string
	Kind      ErrorKind
	Retryable bool

	// cause is the wrapped backend error, when available.
	cause error
}

// NewError constructs an Error with an explicit kind, backend code and
// retryability advisory.
func NewError(kind ErrorKind, code int, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Kind: kind, Retryable: retryable}
}

// Errorf constructs a non-retryable Error of the given kind with a
// formatted message and no backend code.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs an Error that records err as its cause.
// The cause remains reachable through errors.Unwrap / errors.As.
func WrapError(kind ErrorKind, code int, message string, retryable bool, err error) *Error {
	return &Error{Code: code, Message: message, Kind: kind, Retryable: retryable, cause: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped backend error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithRetryable returns a copy of the error with the retryability
// advisory replaced.
func (e *Error) WithRetryable(retryable bool) *Error {
	clone := *e
	clone.Retryable = retryable
	return &clone
}

// AsError normalises an arbitrary error to *Error.
//
// An error already carrying an *Error (directly or via wrapping) is
// returned as-is; anything else becomes KindUnknown with the error's
// text. A nil input yields nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), cause: err}
}

// KindOf reports the ErrorKind carried by err, or KindUnknown when err
// carries no *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// CodeOf reports the backend code carried by err, or 0 when none.
func CodeOf(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return 0
}

// IsRetryable reports the retryability advisory carried by err.
// Errors without an *Error are not retryable.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}
