// Package diagram provides extraction and structural validation of generated
// Draw.io diagram sources.
package diagram

import (
	"strings"
)

// ValidationResult holds the outcome of validating generated output against
// the Draw.io source schema.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Extract pulls the diagram source out of raw generator output. Models either
// return the XML directly or wrap it in a fenced code block; both forms are
// accepted. Returns the extracted source and whether it was wrapped.
func Extract(raw string) (source string, wrapped bool) {
	trimmed := strings.TrimSpace(raw)

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		// Skip an optional language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), true
		}
	}

	// Direct content may still carry prose around the XML; cut to the
	// outermost mxfile element when present.
	if start := strings.Index(trimmed, "<mxfile"); start >= 0 {
		if end := strings.LastIndex(trimmed, "</mxfile>"); end > start {
			extracted := trimmed[start : end+len("</mxfile>")]
			return extracted, extracted != trimmed
		}
	}

	return trimmed, false
}

// Validate checks that source satisfies the required Draw.io structure: an
// mxfile container with a nested mxGraphModel. Generation that reported
// success but fails these checks is rejected.
func Validate(source string) ValidationResult {
	var errs []string

	if strings.TrimSpace(source) == "" {
		return ValidationResult{Errors: []string{"source is empty"}}
	}
	if !strings.Contains(source, "<mxfile") || !strings.Contains(source, "</mxfile>") {
		errs = append(errs, "source must contain an <mxfile> container element")
	}
	if !strings.Contains(source, "<mxGraphModel") {
		errs = append(errs, "source must contain a nested <mxGraphModel> element")
	}
	if !strings.Contains(source, "<root>") {
		errs = append(errs, "mxGraphModel must contain a <root> cell list")
	}

	return ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
