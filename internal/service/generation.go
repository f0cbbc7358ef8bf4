// Package service contains the generation orchestrator: prompt in, cached or
// freshly generated diagram artifacts out.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drawbridge-ai/drawbridge/internal/adapter/fifo"
	otelad "github.com/drawbridge-ai/drawbridge/internal/adapter/otel"
	"github.com/drawbridge-ai/drawbridge/internal/domain"
	"github.com/drawbridge-ai/drawbridge/internal/domain/diagram"
	"github.com/drawbridge-ai/drawbridge/internal/domain/prompt"
	"github.com/drawbridge-ai/drawbridge/internal/port/generator"
	"github.com/drawbridge-ai/drawbridge/internal/port/renderer"
	"github.com/drawbridge-ai/drawbridge/internal/registry"
)

// Result is the outcome of a generation request. ImageID is empty when
// rendering was skipped or failed; Warning then says why.
type Result struct {
	SourceID string `json:"source_id"`
	ImageID  string `json:"image_id,omitzero"`
	Warning  string `json:"warning,omitzero"`
	Cached   bool   `json:"cached"`
	Content  string `json:"content"`
}

// GenerationService orchestrates the full pipeline: cache lookup, text
// generation, extraction, validation, artifact registration and rendering.
// A failed render never fails the request; the source artifact is the
// primary deliverable.
type GenerationService struct {
	generator generator.TextGenerator
	renderer  renderer.Renderer
	cache     *fifo.Cache
	registry  *registry.Registry
	cleaner   *registry.Cleaner
	logger    *slog.Logger
	metrics   *otelad.Metrics

	cacheTTL      time.Duration
	artifactTTL   time.Duration
	targetFreePct float64
}

// NewGenerationService wires the orchestrator. cleaner may be nil, in which
// case storage pressure handling is disabled.
func NewGenerationService(
	gen generator.TextGenerator,
	rend renderer.Renderer,
	cache *fifo.Cache,
	reg *registry.Registry,
	cleaner *registry.Cleaner,
	cacheTTL, artifactTTL time.Duration,
	targetFreePct float64,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		generator:     gen,
		renderer:      rend,
		cache:         cache,
		registry:      reg,
		cleaner:       cleaner,
		cacheTTL:      cacheTTL,
		artifactTTL:   artifactTTL,
		targetFreePct: targetFreePct,
		logger:        logger,
	}
}

// SetMetrics attaches metric instruments. A nil receiver field disables
// metric recording entirely.
func (s *GenerationService) SetMetrics(m *otelad.Metrics) {
	s.metrics = m
}

// CheckCache reports whether a response for the prompt is cached, without
// touching the generation backend or registering anything.
func (s *GenerationService) CheckCache(ctx context.Context, rawPrompt string) (bool, error) {
	_, hit, err := s.cache.Get(ctx, prompt.Fingerprint(rawPrompt))
	return hit, err
}

// Generate runs the full pipeline for a prompt. nameHint is a caller-supplied
// name suggestion for the artifacts; it is sanitized before use.
func (s *GenerationService) Generate(ctx context.Context, rawPrompt, nameHint string) (Result, error) {
	fp := prompt.Fingerprint(rawPrompt)
	ctx, span := otelad.StartGenerationSpan(ctx, fp)
	defer span.End()
	start := time.Now()

	if s.metrics != nil {
		s.metrics.GenerationsTotal.Add(ctx, 1)
	}

	source, cached := s.lookupCached(ctx, fp)
	if s.metrics != nil {
		if cached {
			s.metrics.CacheHits.Add(ctx, 1)
		} else {
			s.metrics.CacheMisses.Add(ctx, 1)
		}
	}

	if !cached {
		raw, err := s.generator.Generate(ctx, rawPrompt)
		if err != nil {
			if s.metrics != nil {
				s.metrics.GenerationFailures.Add(ctx, 1)
			}
			return Result{}, mapGeneratorError(err)
		}

		extracted, wrapped := diagram.Extract(raw)
		if wrapped {
			s.logger.Debug("diagram source extracted from wrapped output", "fingerprint", fp)
		}

		if vr := diagram.Validate(extracted); !vr.Valid {
			if s.metrics != nil {
				s.metrics.GenerationFailures.Add(ctx, 1)
			}
			return Result{}, domain.NewError(domain.CodeInvalidContent,
				fmt.Sprintf("generated output is not a valid diagram: %v", vr.Errors), nil)
		}
		source = extracted
	}

	sourceID, err := s.registry.Register(registry.KindSource, nameHint, []byte(source), s.artifactTTL)
	if err != nil {
		return Result{}, err
	}
	if s.metrics != nil {
		s.metrics.ArtifactsRegistered.Add(ctx, 1)
	}

	res := Result{
		SourceID: sourceID,
		Cached:   cached,
		Content:  source,
	}

	// Rendering is attempted even on cache hits: cached entries hold the
	// source only, and image artifacts expire independently.
	res.ImageID, res.Warning = s.renderImage(ctx, sourceID, nameHint)

	// Only fresh full successes populate the cache. Re-setting on a hit
	// would refresh the entry's TTL and its place in the eviction order,
	// turning insertion-order eviction into access-driven eviction.
	if res.Warning == "" {
		if !cached {
			if err := s.cache.Set(ctx, fp, []byte(source), s.cacheTTL); err != nil {
				s.logger.Warn("could not cache generation result", "error", err)
			}
		}
	} else if s.metrics != nil {
		s.metrics.RenderFailures.Add(ctx, 1)
	}

	if s.metrics != nil {
		s.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
	}

	s.relieveStoragePressure()
	return res, nil
}

// lookupCached returns the cached source for a fingerprint, if any. Cache
// failures degrade to a miss.
func (s *GenerationService) lookupCached(ctx context.Context, fp string) (string, bool) {
	val, hit, err := s.cache.Get(ctx, fp)
	if err != nil {
		s.logger.Warn("cache lookup failed", "error", err)
		return "", false
	}
	if !hit {
		return "", false
	}
	s.logger.Debug("cache hit", "fingerprint", fp)
	return string(val), true
}

// renderImage converts the registered source to PNG and registers the image
// artifact. Any failure is reported as a warning, never as an error.
func (s *GenerationService) renderImage(ctx context.Context, sourceID, nameHint string) (imageID, warning string) {
	if s.renderer == nil || !s.renderer.IsAvailable() {
		return "", "image rendering unavailable: draw.io CLI not installed"
	}

	path, err := s.registry.Resolve(sourceID)
	if err != nil {
		return "", fmt.Sprintf("source artifact vanished before render: %v", err)
	}

	ctx, span := otelad.StartRenderSpan(ctx, sourceID)
	defer span.End()

	png, err := s.renderer.Render(ctx, path)
	if err != nil {
		s.logger.Warn("diagram render failed", "source_id", sourceID, "error", err)
		return "", fmt.Sprintf("diagram generated but image rendering failed: %v", err)
	}

	imageID, err = s.registry.Register(registry.KindImage, nameHint, png, s.artifactTTL)
	if err != nil {
		s.logger.Warn("could not register rendered image", "source_id", sourceID, "error", err)
		return "", fmt.Sprintf("diagram generated but image could not be stored: %v", err)
	}
	if s.metrics != nil {
		s.metrics.ArtifactsRegistered.Add(ctx, 1)
	}
	return imageID, ""
}

// relieveStoragePressure triggers an emergency cleanup when registered
// artifacts exceed the storage budget.
func (s *GenerationService) relieveStoragePressure() {
	if s.cleaner == nil || !s.cleaner.UnderPressure() {
		return
	}
	removed := s.cleaner.EmergencyCleanup(s.targetFreePct)
	s.logger.Warn("storage budget exceeded, emergency cleanup ran", "removed", removed)
}

// ResolveArtifact returns the metadata and on-disk path for an artifact.
// Expired artifacts yield domain.ErrExpired, unknown ones domain.ErrNotFound.
func (s *GenerationService) ResolveArtifact(id string) (registry.Artifact, string, error) {
	path, err := s.registry.Resolve(id)
	if err != nil {
		return registry.Artifact{}, "", err
	}
	a, ok := s.registry.Get(id)
	if !ok {
		return registry.Artifact{}, "", domain.ErrNotFound
	}
	return a, path, nil
}

// DeleteArtifact removes an artifact. Deleting an unknown ID is not an error.
func (s *GenerationService) DeleteArtifact(id string) error {
	return s.registry.Remove(id)
}

// RendererAvailable reports whether the preview rendering tool can be used.
func (s *GenerationService) RendererAvailable() bool {
	return s.renderer != nil && s.renderer.IsAvailable()
}

// CacheStats exposes response cache counters.
func (s *GenerationService) CacheStats() fifo.Stats {
	return s.cache.Stats()
}

// ClearCache drops all cached responses.
func (s *GenerationService) ClearCache() {
	s.cache.Clear()
}

// RunCleanup runs one cleanup pass immediately and returns the number of
// artifacts removed. Returns zero when no cleaner is configured.
func (s *GenerationService) RunCleanup() int {
	if s.cleaner == nil {
		return 0
	}
	return s.cleaner.Sweep()
}

// mapGeneratorError translates the generation port's tagged failures into
// stable domain codes with actionable messages. The mapping is exhaustive;
// unrecognized failures fall through to CodeUnknown.
func mapGeneratorError(err error) error {
	var genErr *generator.Error
	if !errors.As(err, &genErr) {
		return domain.NewError(domain.CodeUnknown, "generation failed", err)
	}

	switch genErr.Kind {
	case generator.RateLimited:
		return domain.NewError(domain.CodeRateLimited,
			"generation backend rate limit reached; retry after a short delay", err)
	case generator.QuotaExceeded:
		return domain.NewError(domain.CodeQuotaExceeded,
			"generation quota exhausted; check the provider plan and billing settings", err)
	case generator.Unauthenticated:
		return domain.NewError(domain.CodeUnauthenticated,
			"generation backend rejected credentials; verify the configured API key", err)
	case generator.Connection:
		return domain.NewError(domain.CodeConnection,
			"could not reach the generation backend; verify network and backend status", err)
	case generator.Timeout:
		return domain.NewError(domain.CodeTimeout,
			"generation timed out; retry or simplify the prompt", err)
	default:
		return domain.NewError(domain.CodeUnknown, "generation failed", err)
	}
}
