package services

import "context"

type contextKey string

const (
	externalIDKey contextKey = "external_id"
	requestIDKey  contextKey = "request_id"
)

// WithExternalID annotates context with the external work item identifier.
func WithExternalID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, externalIDKey, id)
}

// ExternalIDFromContext extracts the external work item identifier if present.
func ExternalIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(externalIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
