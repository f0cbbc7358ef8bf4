// Package registry tracks ephemeral generated artifacts, their expiration,
// and their physical location on backing storage.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drawbridge-ai/drawbridge/internal/domain"
)

// Kind identifies what an artifact holds.
type Kind string

const (
	// KindSource is a Draw.io diagram source file.
	KindSource Kind = "source"
	// KindImage is a rendered PNG preview.
	KindImage Kind = "image"
)

// Ext returns the on-disk extension for the kind.
func (k Kind) Ext() string {
	if k == KindImage {
		return ".png"
	}
	return ".drawio"
}

// MIMEType returns the content type served for the kind.
func (k Kind) MIMEType() string {
	if k == KindImage {
		return "image/png"
	}
	return "application/xml"
}

// Artifact is the metadata record for one tracked file.
type Artifact struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	Kind         Kind      `json:"kind"`
	Path         string    `json:"-"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IntegrityReport lists the two classes of registry/storage inconsistency.
type IntegrityReport struct {
	// MissingFiles are artifact ids whose backing file is gone.
	MissingFiles []string
	// Orphans are absolute paths present on disk with no metadata entry.
	Orphans []string
}

// Registry owns the id → artifact mapping and keeps it consistent with the
// backing directory. It is constructed once at process start and injected;
// there is no package-level instance. All compound mutations, including the
// cleanup sweeps, serialize through one mutex.
type Registry struct {
	mu      sync.Mutex
	dir     string
	entries map[string]*Artifact
	logger  *slog.Logger
	now     func() time.Time // for testing
}

// tmpPrefix marks in-flight writes so the orphan sweep never collects a file
// that is still being registered. In-flight writes finish within
// milliseconds; a tmp file older than tmpGrace is debris from a crashed or
// failed registration and gets swept like any other orphan.
const (
	tmpPrefix = ".tmp-"
	tmpGrace  = time.Minute
)

// New creates a Registry backed by dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("registry: create dir %s: %w", dir, err)
	}
	return &Registry{
		dir:     dir,
		entries: make(map[string]*Artifact),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Register persists data under a fresh unique id and records its metadata.
// On any write failure no metadata entry is left behind. nameHint is
// sanitized before use; ttl bounds the artifact's lifetime.
func (r *Registry) Register(kind Kind, nameHint string, data []byte, ttl time.Duration) (string, error) {
	id := uuid.NewString()
	name := SanitizeName(nameHint, kind)
	final := filepath.Join(r.dir, id+kind.Ext())
	tmp := filepath.Join(r.dir, tmpPrefix+id)

	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		// A partial tmp file may exist, e.g. when the disk filled mid-write.
		_ = os.Remove(tmp)
		return "", domain.NewError(domain.CodeStorage, "failed to write artifact", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A repeated UUID would silently cross-link two artifacts; that is an
	// unrecoverable invariant violation, not an error to hand back.
	if _, dup := r.entries[id]; dup {
		panic(fmt.Sprintf("registry: duplicate artifact id %s", id))
	}

	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", domain.NewError(domain.CodeStorage, "failed to place artifact", err)
	}

	now := r.now()
	r.entries[id] = &Artifact{
		ID:           id,
		OriginalName: name,
		Kind:         kind,
		Path:         final,
		Size:         int64(len(data)),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	return id, nil
}

// Resolve returns the physical location for id. Unknown ids yield
// domain.ErrNotFound; known-but-expired ids yield domain.ErrExpired and are
// lazily removed.
func (r *Registry) Resolve(id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.entries[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	if !r.now().Before(a.ExpiresAt) {
		r.removeLocked(a)
		return "", domain.ErrExpired
	}
	return a.Path, nil
}

// Get returns a copy of the metadata for id, expired or not.
func (r *Registry) Get(id string) (Artifact, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.entries[id]
	if !ok {
		return Artifact{}, false
	}
	return *a, true
}

// Remove deletes both the backing file and the metadata entry. Removing an
// unknown id is a no-op. A backing file that is already gone is logged, not
// raised.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.entries[id]
	if !ok {
		return nil
	}
	return r.removeLocked(a)
}

// removeLocked drops the metadata entry and deletes the backing file.
// Must be called with r.mu held.
func (r *Registry) removeLocked(a *Artifact) error {
	delete(r.entries, a.ID)
	if err := os.Remove(a.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("artifact file already missing", "id", a.ID, "path", a.Path)
			return nil
		}
		return domain.NewError(domain.CodeStorage, "failed to delete artifact file", err)
	}
	return nil
}

// RemoveExpired deletes every artifact whose expiry has passed and returns
// the number removed. The whole pass runs under the registry mutex so a
// register racing the sweep is either fully visible or not at all.
func (r *Registry) RemoveExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for _, a := range r.entries {
		if now.Before(a.ExpiresAt) {
			continue
		}
		if err := r.removeLocked(a); err != nil {
			r.logger.Warn("expire sweep: failed to remove artifact", "id", a.ID, "error", err)
			continue
		}
		removed++
	}
	return removed
}

// VerifyIntegrity reports metadata entries without backing files and files
// without metadata. It never fails on individual items.
func (r *Registry) VerifyIntegrity() (IntegrityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report IntegrityReport

	tracked := make(map[string]struct{}, len(r.entries))
	for id, a := range r.entries {
		tracked[filepath.Base(a.Path)] = struct{}{}
		if _, err := os.Stat(a.Path); errors.Is(err, os.ErrNotExist) {
			report.MissingFiles = append(report.MissingFiles, id)
		}
	}

	dirEntries, err := os.ReadDir(r.dir)
	if err != nil {
		return report, fmt.Errorf("registry: read dir: %w", err)
	}
	staleCutoff := r.now().Add(-tmpGrace)
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() {
			continue
		}
		if strings.HasPrefix(name, tmpPrefix) {
			info, statErr := de.Info()
			if statErr == nil && info.ModTime().Before(staleCutoff) {
				report.Orphans = append(report.Orphans, filepath.Join(r.dir, name))
			}
			continue
		}
		if _, ok := tracked[name]; !ok {
			report.Orphans = append(report.Orphans, filepath.Join(r.dir, name))
		}
	}

	sort.Strings(report.MissingFiles)
	sort.Strings(report.Orphans)
	return report, nil
}

// DropEntry removes only the metadata record for id, used when the backing
// file is already known to be missing.
func (r *Registry) DropEntry(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// RemoveOrphan deletes an untracked file inside the registry directory.
// Paths outside the directory are refused.
func (r *Registry) RemoveOrphan(path string) error {
	if filepath.Dir(path) != filepath.Clean(r.dir) {
		return fmt.Errorf("registry: refusing to remove %s outside %s", path, r.dir)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// OldestFirst returns a snapshot of all artifacts ordered by creation time,
// oldest first. Used by emergency cleanup.
func (r *Registry) OldestFirst() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Artifact, 0, len(r.entries))
	for _, a := range r.entries {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tracked artifacts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// UsedBytes returns the total size of tracked artifacts.
func (r *Registry) UsedBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, a := range r.entries {
		total += a.Size
	}
	return total
}

// Reset drops all entries and recreates the backing directory. Intended for
// test isolation; safe to call on a live registry.
func (r *Registry) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*Artifact)
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("registry: reset: %w", err)
	}
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("registry: reset: %w", err)
	}
	return nil
}

// SanitizeName reduces a user-supplied filename hint to a safe base name:
// path separators and traversal sequences are stripped, leading dots are
// removed, and overly long names are truncated. A name without an extension
// gets the kind's extension; an unusable hint falls back to a name derived
// from the kind.
func SanitizeName(hint string, kind Kind) string {
	name := filepath.Base(strings.ReplaceAll(hint, `\`, "/"))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimLeft(name, ".")
	name = strings.TrimSpace(name)
	if len(name) > 128 {
		name = name[:128]
	}
	if name == "" || name == "/" {
		return "diagram" + kind.Ext()
	}
	if filepath.Ext(name) == "" {
		name += kind.Ext()
	}
	return name
}
