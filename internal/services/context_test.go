package services_test

import (
	"context"
	"testing"

	"fulfill/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithSystem(ctx, "asd")
	ctx = services.WithCategory(ctx, "board")
	ctx = services.WithSN(ctx, "SN001")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if system, ok := services.SystemFromContext(ctx); !ok || system != "asd" {
		t.Fatalf("unexpected system: %v %v", system, ok)
	}
	if category, ok := services.CategoryFromContext(ctx); !ok || category != "board" {
		t.Fatalf("unexpected category: %v %v", category, ok)
	}
	if sn, ok := services.SNFromContext(ctx); !ok || sn != "SN001" {
		t.Fatalf("unexpected sn: %v %v", sn, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithCategory(context.Background(), "")
	if _, ok := services.CategoryFromContext(ctx); ok {
		t.Fatal("expected no category value")
	}
}
