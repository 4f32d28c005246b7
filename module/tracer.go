package module

import (
	"context"

	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/finalitylabs/blocksync/module/trace"
)

var (
	_ Tracer = &trace.Tracer{}
	_ Tracer = &trace.NoopTracer{}
)

// Tracer opens spans around the work of the sync engine.
type Tracer interface {
	// StartSpanFromContext starts a span as a child of the span in ctx, if
	// any. The returned context holds the new span for nested calls.
	StartSpanFromContext(
		ctx context.Context,
		operationName trace.SpanName,
		opts ...otelTrace.SpanStartOption,
	) (
		otelTrace.Span,
		context.Context,
	)
}
