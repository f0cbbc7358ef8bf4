// Package http provides the REST surface for Drawbridge: diagram generation,
// artifact retrieval and operational endpoints.
package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/drawbridge-ai/drawbridge/internal/domain"
	"github.com/drawbridge-ai/drawbridge/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	svc     *service.GenerationService
	version string
}

// NewHandlers creates the handler set around the generation service.
func NewHandlers(svc *service.GenerationService, version string) *Handlers {
	return &Handlers{svc: svc, version: version}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Name   string `json:"name,omitzero"`
}

// GenerateDiagram handles POST /api/v1/diagrams.
func (h *Handlers) GenerateDiagram(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[generateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, domain.CodeUnknown, "prompt is required")
		return
	}

	res, err := h.svc.Generate(r.Context(), req.Prompt, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetArtifact handles GET /api/v1/artifacts/{id}: serves the artifact file
// with its MIME type. Expired artifacts return 410, unknown ones 404.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, path, err := h.svc.ResolveArtifact(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", a.Kind.MIMEType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+a.OriginalName+`"`)
	http.ServeFile(w, r, path)
}

// GetArtifactMeta handles GET /api/v1/artifacts/{id}/meta.
func (h *Handlers) GetArtifactMeta(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, _, err := h.svc.ResolveArtifact(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteArtifact handles DELETE /api/v1/artifacts/{id}. Deleting an unknown
// artifact succeeds; the end state is identical.
func (h *Handlers) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteArtifact(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handlers) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CacheStats())
}

// ClearCache handles POST /api/v1/cache/clear.
func (h *Handlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	h.svc.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// RunCleanup handles POST /api/v1/cleanup: one immediate cleanup pass.
func (h *Handlers) RunCleanup(w http.ResponseWriter, _ *http.Request) {
	removed := h.svc.RunCleanup()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// Health handles GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  h.version,
		"renderer": h.svc.RendererAvailable(),
	})
}
