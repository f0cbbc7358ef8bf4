// Package drawio renders diagram source files to PNG through the draw.io
// desktop CLI. Rendering is best effort; callers degrade gracefully when
// the binary is absent or a conversion fails.
package drawio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/drawbridge-ai/drawbridge/internal/port/renderer"
)

// Renderer shells out to the draw.io CLI. A weighted semaphore bounds the
// number of concurrent exports; each export spawns an Electron process.
type Renderer struct {
	binary  string
	timeout time.Duration
	sem     *semaphore.Weighted
	logger  *slog.Logger

	probeOnce sync.Once
	probeErr  error
}

// New creates a renderer around the given CLI binary name or path.
// maxConcurrent bounds simultaneous exports.
func New(binary string, timeout time.Duration, maxConcurrent int, logger *slog.Logger) *Renderer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Renderer{
		binary:  binary,
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		logger:  logger,
	}
}

// IsAvailable reports whether the CLI binary can be resolved. The lookup
// runs once; a missing binary stays missing for the process lifetime.
func (r *Renderer) IsAvailable() bool {
	r.probeOnce.Do(func() {
		_, r.probeErr = exec.LookPath(r.binary)
		if r.probeErr != nil {
			r.logger.Warn("draw.io CLI not found, image rendering disabled",
				"binary", r.binary, "error", r.probeErr)
		}
	})
	return r.probeErr == nil
}

// Render exports the diagram at sourcePath to PNG and returns the image
// bytes. The CLI writes into a private temp directory, never next to the
// source: the source lives in a swept artifact directory where an untracked
// in-progress file would be collected as an orphan.
func (r *Renderer) Render(ctx context.Context, sourcePath string) ([]byte, error) {
	if !r.IsAvailable() {
		return nil, &renderer.Error{
			Kind:    renderer.ToolUnavailable,
			Message: fmt.Sprintf("renderer binary %q not found", r.binary),
			Err:     r.probeErr,
		}
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, &renderer.Error{Kind: renderer.ConversionFailed, Message: "render slot unavailable", Err: err}
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	outDir, err := os.MkdirTemp("", "drawio-export-")
	if err != nil {
		return nil, &renderer.Error{Kind: renderer.ConversionFailed, Message: "failed to create export dir", Err: err}
	}
	defer func() { _ = os.RemoveAll(outDir) }()
	outPath := filepath.Join(outDir, "out.png")

	cmd := exec.CommandContext(ctx, r.binary, "-x", "-f", "png", "-o", outPath, sourcePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, &renderer.Error{
			Kind:    renderer.ConversionFailed,
			Message: fmt.Sprintf("draw.io export failed: %s", stderrTail(stderr.String())),
			Err:     err,
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &renderer.Error{
			Kind:    renderer.ConversionFailed,
			Message: "draw.io export produced no output file",
			Err:     err,
		}
	}
	if len(data) == 0 {
		return nil, &renderer.Error{Kind: renderer.ConversionFailed, Message: "draw.io export produced an empty file"}
	}

	r.logger.Debug("diagram rendered", "source", sourcePath, "bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())
	return data, nil
}

// stderrTail keeps the last few lines of CLI output for error messages.
// The draw.io CLI prints pages of Electron noise before the actual failure.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "no error output"
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return strings.Join(lines, "; ")
}
