package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "drawbridge"

// Metrics holds all Drawbridge metric instruments.
type Metrics struct {
	CacheHits           metric.Int64Counter
	CacheMisses         metric.Int64Counter
	GenerationsTotal    metric.Int64Counter
	GenerationFailures  metric.Int64Counter
	RenderFailures      metric.Int64Counter
	ArtifactsRegistered metric.Int64Counter
	CleanupRemoved      metric.Int64Counter
	GenerationDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.CacheHits, err = meter.Int64Counter("drawbridge.cache.hits",
		metric.WithDescription("Number of response cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("drawbridge.cache.misses",
		metric.WithDescription("Number of response cache misses"))
	if err != nil {
		return nil, err
	}

	m.GenerationsTotal, err = meter.Int64Counter("drawbridge.generations.total",
		metric.WithDescription("Number of diagram generation requests"))
	if err != nil {
		return nil, err
	}

	m.GenerationFailures, err = meter.Int64Counter("drawbridge.generations.failed",
		metric.WithDescription("Number of failed diagram generations"))
	if err != nil {
		return nil, err
	}

	m.RenderFailures, err = meter.Int64Counter("drawbridge.renders.failed",
		metric.WithDescription("Number of failed or skipped image renders"))
	if err != nil {
		return nil, err
	}

	m.ArtifactsRegistered, err = meter.Int64Counter("drawbridge.artifacts.registered",
		metric.WithDescription("Number of artifacts registered"))
	if err != nil {
		return nil, err
	}

	m.CleanupRemoved, err = meter.Int64Counter("drawbridge.cleanup.removed",
		metric.WithDescription("Number of artifacts removed by cleanup passes"))
	if err != nil {
		return nil, err
	}

	m.GenerationDuration, err = meter.Float64Histogram("drawbridge.generation.duration_seconds",
		metric.WithDescription("End to end generation duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
