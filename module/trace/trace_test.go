package trace_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/finalitylabs/blocksync/module/trace"
	"github.com/finalitylabs/blocksync/utils/unittest"
)

func TestTracer_NestedSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := trace.NewTracerWithProvider(unittest.Logger(), sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	unittest.RequireCloseBefore(t, tracer.Ready(), time.Second, "tracer did not start")

	parent, ctx := tracer.StartSpanFromContext(context.Background(), trace.SyncHandleMessage)
	child, _ := tracer.StartSpanFromContext(ctx, trace.SyncHandleChainEvent)
	trace.RecordError(child, errors.New("boom"))
	child.End()
	parent.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, string(trace.SyncHandleChainEvent), ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, string(trace.SyncHandleMessage), ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, codes.Unset, ended[1].Status().Code)

	unittest.RequireCloseBefore(t, tracer.Done(), time.Second, "tracer did not stop")
}

func TestNoopTracer(t *testing.T) {
	span, ctx := trace.NewNoopTracer().StartSpanFromContext(context.Background(), trace.SyncHandleMessage)
	defer span.End()
	assert.False(t, span.IsRecording())
	assert.NotNil(t, ctx)
}
