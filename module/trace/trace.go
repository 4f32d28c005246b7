package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "github.com/finalitylabs/blocksync"
	shutdownTimeout = 5 * time.Second
)

// Tracer opens spans on an OpenTelemetry SDK provider. Ended spans are
// flushed on Done.
type Tracer struct {
	log      zerolog.Logger
	provider *sdktrace.TracerProvider
	tracer   otelTrace.Tracer
}

// NewTracer creates a tracer exporting to an OTLP collector over gRPC.
// sampleRate is the fraction of root spans that are recorded.
func NewTracer(log zerolog.Logger, serviceName string, endpoint string, sampleRate float64) (*Tracer, error) {
	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create trace exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	)
	otel.SetTracerProvider(provider)
	return NewTracerWithProvider(log, provider), nil
}

// NewTracerWithProvider creates a tracer on the given provider. The provider
// is shut down with the tracer.
func NewTracerWithProvider(log zerolog.Logger, provider *sdktrace.TracerProvider) *Tracer {
	return &Tracer{
		log:      log.With().Str("component", "tracer").Logger(),
		provider: provider,
		tracer:   provider.Tracer(tracerName),
	}
}

// Ready returns a channel that is already closed, the provider needs no startup.
func (t *Tracer) Ready() <-chan struct{} {
	ready := make(chan struct{})
	close(ready)
	return ready
}

// Done flushes the ended spans and shuts the provider down.
func (t *Tracer) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := t.provider.Shutdown(ctx); err != nil {
			t.log.Warn().Err(err).Msg("could not flush spans")
		}
	}()
	return done
}

// StartSpanFromContext starts a span as a child of the span in ctx, if any,
// and returns a context holding the new span.
func (t *Tracer) StartSpanFromContext(
	ctx context.Context,
	name SpanName,
	opts ...otelTrace.SpanStartOption,
) (otelTrace.Span, context.Context) {
	ctx, span := t.tracer.Start(ctx, string(name), opts...)
	return span, ctx
}

// RecordError marks the span as failed.
func RecordError(span otelTrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
