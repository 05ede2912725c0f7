package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"pixellocker/internal/verification/tracer"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := tracer.NewNoop().Start(ctx, tracer.SpanVerify, tracer.String(tracer.AttrKeyKind, "id"))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, true))
	span.AddEvent("cache.miss", tracer.Int64(tracer.AttrLedgerHeight, 7))
	span.End(errors.New("boom"))
}

func TestOTelTracer_WithInjectedTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanVerifyBatch, tracer.Int64(tracer.AttrBatchSize, 3))
	require.NotNil(t, span)
	span.SetAttributes(tracer.String(tracer.AttrOnChainStatus, "active"), tracer.Bool(tracer.AttrValid, true))
	span.End(nil)
}

func TestAttributeConstructors(t *testing.T) {
	assert.Equal(t, tracer.Attribute{Key: "k", Value: "v"}, tracer.String("k", "v"))
	assert.Equal(t, tracer.Attribute{Key: "flag", Value: true}, tracer.Bool("flag", true))
	assert.Equal(t, tracer.Attribute{Key: "n", Value: int64(42)}, tracer.Int64("n", 42))
}
