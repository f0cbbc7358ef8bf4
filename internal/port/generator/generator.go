// Package generator defines the port interface for the external
// text-generation collaborator.
package generator

import (
	"context"
	"fmt"
)

// FailureKind classifies why a generation call failed. Classification is the
// adapter's job; callers switch on the kind and never inspect message text.
type FailureKind string

const (
	RateLimited     FailureKind = "rate_limited"
	QuotaExceeded   FailureKind = "quota_exceeded"
	Unauthenticated FailureKind = "unauthenticated"
	Connection      FailureKind = "connection"
	Timeout         FailureKind = "timeout"
	Unknown         FailureKind = "unknown"
)

// Error is a classified generation failure.
type Error struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generator %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("generator %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// TextGenerator is the port interface for prompt-to-text generation.
// Implementations must bound the call with a timeout and return *Error on
// failure.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
