// Package prompt provides prompt normalization and cache key derivation.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize trims the prompt and collapses every run of whitespace into a
// single space, so prompts differing only in incidental whitespace map to the
// same cache entry.
func Normalize(p string) string {
	return strings.Join(strings.Fields(p), " ")
}

// Fingerprint returns the deterministic cache key for a prompt: the SHA-256
// hex digest of its normalized form.
func Fingerprint(p string) string {
	sum := sha256.Sum256([]byte(Normalize(p)))
	return hex.EncodeToString(sum[:])
}
