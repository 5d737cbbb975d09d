package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"fulfill/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransport, "workorder", "export", "request failed", base)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"workorder", "export", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestOrphanedOrderIsTaggable(t *testing.T) {
	cause := services.Wrap(services.ErrBackend, "asd", "pickBySnCode", "confirm pick failed", nil)
	var err error = &services.OrphanedOrder{SONo: "SO123", SN: "SN9", Step: "confirm", Err: cause}
	err = fmt.Errorf("pick: %w", err)

	if !errors.Is(err, services.ErrOrphanedOrder) {
		t.Fatal("expected orphaned order marker")
	}
	if !errors.Is(err, services.ErrBackend) {
		t.Fatal("expected cause marker to remain visible")
	}
	orphan, ok := services.AsOrphanedOrder(err)
	if !ok || orphan.SONo != "SO123" || orphan.Step != "confirm" {
		t.Fatalf("unexpected orphan detail: %+v %v", orphan, ok)
	}
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrAuth, "asd", "login", "rejected", nil), "auth"},
		{&services.OrphanedOrder{SONo: "SO1"}, "orphaned_order"},
		{services.Wrap(services.ErrTransport, "", "", "", nil), "transport"},
		{services.Wrap(services.ErrExhausted, "captcha", "recognize", "", nil), "exhausted"},
		{errors.New("other"), "unknown"},
	}
	for _, tc := range tests {
		if got := services.FailureKind(tc.err); got != tc.want {
			t.Fatalf("FailureKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
