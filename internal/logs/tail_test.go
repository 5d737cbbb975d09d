package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"fulfill/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fulfill.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	tests := []struct {
		name  string
		limit int
		match string
		want  []string
	}{
		{"last two", 2, "", []string{"b", "c"}},
		{"more than available", 10, "", []string{"a", "b", "c"}},
		{"filtered", 5, "b", []string{"b"}},
		{"zero limit", 0, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: tt.limit, Match: tt.match})
			if err != nil {
				t.Fatalf("Tail: %v", err)
			}
			if len(res.Lines) != len(tt.want) || (len(tt.want) > 0 && !reflect.DeepEqual(res.Lines, tt.want)) {
				t.Fatalf("lines = %#v, want %#v", res.Lines, tt.want)
			}
			if res.Offset != 6 {
				t.Fatalf("offset = %d, want 6", res.Offset)
			}
		})
	}
}

func TestTailMissingFile(t *testing.T) {
	res, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: 42, Limit: 5})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(res.Lines) != 0 || res.Offset != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTailResumesAfterTruncation(t *testing.T) {
	path := writeLog(t, "x\n")
	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 100})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(res.Lines) != 0 || res.Offset != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second, Match: "SN001"})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if len(res.Lines) != 1 || res.Lines[0] != "picked SN001" {
			t.Errorf("unexpected follow lines: %#v", res.Lines)
		}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("noise\npicked SN001\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}
