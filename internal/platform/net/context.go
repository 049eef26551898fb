// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const (
	keyMailbox ctxKey = "mailbox"
	keyTraceID ctxKey = "trace_id"
)

// WithRequest annotates context with common request scoped ids
func WithRequest(ctx context.Context, reqID, mailbox string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if mailbox != "" {
		ctx = context.WithValue(ctx, keyMailbox, mailbox)
	}
	return ctx
}

// WithTrace annotates context with the upstream trace id
func WithTrace(ctx context.Context, traceID string) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, keyTraceID, traceID)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// Mailbox returns the mailbox on the context if present
func Mailbox(ctx context.Context) string {
	if v, ok := ctx.Value(keyMailbox).(string); ok {
		return v
	}
	return ""
}

// TraceID returns the upstream trace id on the context if present
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(keyTraceID).(string); ok {
		return v
	}
	return ""
}
