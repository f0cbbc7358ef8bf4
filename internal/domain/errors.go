// Package domain provides shared domain-level errors for Drawbridge.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested artifact or entry never existed.
var ErrNotFound = errors.New("not found")

// ErrExpired indicates the artifact existed but its TTL has elapsed.
// Callers must treat this distinctly from ErrNotFound (gone vs never existed).
var ErrExpired = errors.New("expired")

// Code is a stable machine-readable identifier for a terminal failure.
type Code string

const (
	CodeRateLimited     Code = "rate_limited"
	CodeQuotaExceeded   Code = "quota_exceeded"
	CodeUnauthenticated Code = "unauthenticated"
	CodeConnection      Code = "connection_error"
	CodeTimeout         Code = "timeout"
	CodeInvalidContent  Code = "invalid_generated_content"
	CodeStorage         Code = "storage_error"
	CodeUnknown         Code = "unknown_error"
)

// Error is a classified terminal failure carrying a stable code and a
// human-readable message. Classification happens once, at the collaborator
// boundary; the orchestrator propagates the code unchanged.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// NewError builds a classified error. cause may be nil.
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the classification code from err, or CodeUnknown when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}
