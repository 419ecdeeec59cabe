package common

import (
	"context"
	"time"
)

// metaKey keys the request metadata stored on a context
type metaKey int

const (
	requestIDKey metaKey = iota
	traceIDKey
	sessionIDKey
	startTimeKey
)

// WithRequestID tags the context with the router's request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithTraceID tags the context with the upstream trace header
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSessionID tags the context with the editing session being served
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithStartTime records when the request entered the router
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, startTime)
}

// ContextMetadata is the request metadata carried for logging. Missing
// values are left empty; Duration is zero without a start time.
type ContextMetadata struct {
	RequestID string        `json:"request_id,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// ExtractMetadata collects every tag set on ctx
func ExtractMetadata(ctx context.Context) ContextMetadata {
	meta := ContextMetadata{
		RequestID: stringValue(ctx, requestIDKey),
		TraceID:   stringValue(ctx, traceIDKey),
		SessionID: stringValue(ctx, sessionIDKey),
	}
	if start, ok := ctx.Value(startTimeKey).(time.Time); ok {
		meta.Duration = time.Since(start)
	}
	return meta
}

func stringValue(ctx context.Context, key metaKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}
