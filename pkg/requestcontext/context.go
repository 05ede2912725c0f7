// Package requestcontext carries request-scoped values (caller principal,
// request metadata and request time) between transport and services.
package requestcontext

import (
	"context"
	"time"

	"pixellocker/pkg/domain"
)

type contextKey string

const (
	ContextKeyPrincipal   contextKey = "principal"
	ContextKeyRequestID   contextKey = "request_id"
	ContextKeyRequestTime contextKey = "request_time"
	ContextKeyClientIP    contextKey = "client_ip"
	ContextKeyUserAgent   contextKey = "user_agent"
	ContextKeyDevice      contextKey = "device"
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// Principal returns the authenticated caller, or the empty address if none.
func Principal(ctx context.Context) domain.Address {
	if p, ok := ctx.Value(ContextKeyPrincipal).(domain.Address); ok {
		return p
	}
	return ""
}

// WithPrincipal injects the authenticated caller into a context.
func WithPrincipal(ctx context.Context, p domain.Address) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}

// Device returns the coarse device label derived from the User-Agent.
func Device(ctx context.Context) string {
	if d, ok := ctx.Value(ContextKeyDevice).(string); ok {
		return d
	}
	return ""
}

func WithDevice(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, ContextKeyDevice, label)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time, e.g. for a CLI command or a deterministic test.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
