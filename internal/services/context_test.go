package services_test

import (
	"context"
	"testing"

	"devopsmirror/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithExternalID(ctx, "42")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ExternalIDFromContext(ctx); !ok || id != "42" {
		t.Fatalf("unexpected external id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithExternalID(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.ExternalIDFromContext(ctx); ok {
		t.Fatal("expected no external id value")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
}
