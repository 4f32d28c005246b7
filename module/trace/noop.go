package trace

import (
	"context"

	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopTracer hands out spans that record nothing.
type NoopTracer struct {
	tracer otelTrace.Tracer
}

func NewNoopTracer() *NoopTracer {
	return &NoopTracer{tracer: noop.NewTracerProvider().Tracer(tracerName)}
}

func (t *NoopTracer) StartSpanFromContext(
	ctx context.Context,
	name SpanName,
	opts ...otelTrace.SpanStartOption,
) (otelTrace.Span, context.Context) {
	ctx, span := t.tracer.Start(ctx, string(name), opts...)
	return span, ctx
}
