// Package domain defines the core domain models for pathnet.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a connection-model error with a structured code.
//
// Codes follow PN-<AREA>-<NNNN>. Errors compare equal under errors.Is when
// their codes match, so callers can test against the sentinels below even
// after WithDetails or WithCause produced a new value.
type DomainError struct {
	Code    string // Error code (e.g., "PN-CONN-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Connection Errors (CONN)
// ============================================================================

var (
	// ErrAmbiguousEndpoint indicates the endpoint belongs to neither side of
	// the connection it was checked against.
	ErrAmbiguousEndpoint = NewDomainError("PN-CONN-4001", "endpoint does not belong to this connection")

	// ErrConnectionNotFound indicates no connection matched the lookup.
	ErrConnectionNotFound = NewDomainError("PN-CONN-4040", "connection not found")

	// ErrNoClient indicates the server side was completed before any client was bound.
	ErrNoClient = NewDomainError("PN-CONN-4091", "no client bound to connection")

	// ErrNoServer indicates the client side was completed before any server was bound.
	ErrNoServer = NewDomainError("PN-CONN-4092", "no server bound to connection")

	// ErrBufferEmpty indicates a read from a buffer holding no data.
	ErrBufferEmpty = NewDomainError("PN-CONN-4100", "buffer empty")
)

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrStateNotFound indicates no snapshot was archived for a search state.
	ErrStateNotFound = NewDomainError("PN-SNAP-4040", "search state not archived")

	// ErrRunNotFound indicates the verification run is unknown or already ended.
	ErrRunNotFound = NewDomainError("PN-SNAP-4041", "run not found")
)

// ============================================================================
// System / Argument Errors
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("PN-ARG-1001", "invalid argument")

	// ErrInternal indicates an internal error.
	ErrInternal = NewDomainError("PN-SYS-5000", "internal error")

	// ErrStorage indicates a storage layer error.
	ErrStorage = NewDomainError("PN-SYS-5001", "storage error")
)
