package workflow

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("farmbooks-accounting")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func sourceAttributes(sourceType, sourceId string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("posting.source_type", sourceType),
		attribute.String("posting.source_id", sourceId),
	)
}
