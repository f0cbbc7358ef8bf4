package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "drawbridge"

// StartGenerationSpan starts a span covering one generation request.
func StartGenerationSpan(ctx context.Context, fingerprint string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generate",
		trace.WithAttributes(
			attribute.String("prompt.fingerprint", fingerprint),
		),
	)
}

// StartRenderSpan starts a span for rendering a source artifact to PNG.
func StartRenderSpan(ctx context.Context, sourceID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "render",
		trace.WithAttributes(
			attribute.String("artifact.source_id", sourceID),
		),
	)
}
