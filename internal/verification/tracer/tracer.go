// Package tracer keeps OpenTelemetry behind a small interface so the
// verification service can be traced in production and run span-free in tests.
package tracer

import "context"

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span; a non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer starts spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span names.
const (
	SpanVerify      = "verification.verify"
	SpanVerifyBatch = "verification.batch"
	SpanResolve     = "verification.resolve"
)

// Attribute keys.
const (
	AttrKeyKind       = "verification.key_kind"
	AttrCacheHit      = "cache.hit"
	AttrCacheBypassed = "cache.bypassed"
	AttrOnChainStatus = "verification.on_chain_status"
	AttrExpiryStatus  = "verification.expiry_status"
	AttrValid         = "verification.valid"
	AttrLedgerHeight  = "ledger.height"
	AttrBatchSize     = "verification.batch_size"
)
