// Package requestcontext carries per-request metadata through context: the
// request ID assigned by middleware, the resolved client IP, and an injectable
// clock so time-dependent logic (sliding windows, reset timestamps) can be
// tested without sleeping.
package requestcontext

import (
	"context"
	"time"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	clientIPKey
	clockKey
)

// Clock returns the current time. Production code uses time.Now; tests inject
// a fixed or advancing clock via WithClock.
type Clock func() time.Time

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID from context, or "" if absent.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClientIP returns a context carrying the resolved client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP from context, or "" if absent.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok {
		return v
	}
	return ""
}

// WithClock returns a context carrying an injected clock.
func WithClock(ctx context.Context, clock Clock) context.Context {
	return context.WithValue(ctx, clockKey, clock)
}

// Now returns the current time according to the context clock, falling back to
// time.Now. All admission-path time reads go through here so window expiry is
// testable.
func Now(ctx context.Context) time.Time {
	if clock, ok := ctx.Value(clockKey).(Clock); ok && clock != nil {
		return clock()
	}
	return time.Now()
}
