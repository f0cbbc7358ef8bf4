// Package renderer defines the port interface for the external diagram
// rendering collaborator.
package renderer

import (
	"context"
	"fmt"
)

// FailureKind classifies why a render call failed.
type FailureKind string

const (
	// ToolUnavailable means the rendering tool is not installed or not
	// executable; callers should degrade rather than retry.
	ToolUnavailable FailureKind = "tool_unavailable"
	// ConversionFailed means the tool ran but did not produce an image.
	ConversionFailed FailureKind = "conversion_failed"
)

// Error is a classified render failure.
type Error struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("renderer %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("renderer %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Renderer is the port interface for converting a diagram source file into a
// preview image. IsAvailable lets callers short-circuit before attempting an
// expensive call against a missing tool.
type Renderer interface {
	IsAvailable() bool
	Render(ctx context.Context, sourcePath string) ([]byte, error)
}
