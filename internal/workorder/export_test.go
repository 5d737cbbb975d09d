package workorder_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"fulfill/internal/fulfillment"
	"fulfill/internal/services"
	"fulfill/internal/session"
	"fulfill/internal/workorder"
)

func TestExportQueryFilters(t *testing.T) {
	q := workorder.ExportQuery(fulfillment.CategoryBoard, "114")
	want := map[string]string{
		"status":         "9",
		"keywordoption":  "mobile",
		"datetype":       "2",
		"isvip":          "2",
		"agency":         "114",
		"innertype":      "2",
		"charge":         "0",
		"waitpartstatus": "0",
		"keyword":        "",
		"startdate":      "",
	}
	for key, value := range want {
		got, ok := q[key]
		if !ok || got[0] != value {
			t.Fatalf("%s = %v, want %q", key, got, value)
		}
	}
	if workorder.ExportQuery(fulfillment.CategoryMachine, "114").Get("innertype") != "1" {
		t.Fatal("machine export must use innertype 1")
	}
}

func authenticatedSession(t *testing.T, handler http.Handler) *session.Session {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	sess, err := workorder.NewSession(ts.URL, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sess.BeginLogin()
	sess.MarkAuthenticated()
	return sess
}

func TestExportWritesBodyVerbatim(t *testing.T) {
	body := []byte("\xbb\xfa\xba\xc51(sn)\nSN1\n")
	var gotQuery string
	sess := authenticatedSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.php/Order/exportorder.html" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("innertype")
		_, _ = w.Write(body)
	}))
	dest := filepath.Join(t.TempDir(), "exports", "user_machine.csv")

	if err := workorder.NewExporter(sess, "", nil).Export(context.Background(), fulfillment.CategoryMachine, dest); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != string(body) {
		t.Fatalf("export body altered: %q", data)
	}
	if gotQuery != "1" {
		t.Fatalf("expected machine innertype, got %q", gotQuery)
	}
}

func TestExportFailureKeepsPreviousFile(t *testing.T) {
	sess := authenticatedSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	dest := filepath.Join(t.TempDir(), "user_board.csv")
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := workorder.NewExporter(sess, "114", nil).Export(context.Background(), fulfillment.CategoryBoard, dest)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if data, _ := os.ReadFile(dest); string(data) != "old" {
		t.Fatalf("previous export must survive a failed download, got %q", data)
	}
}

func TestExportRequiresAuthentication(t *testing.T) {
	sess, err := workorder.NewSession("http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	err = workorder.NewExporter(sess, "", nil).Export(context.Background(), fulfillment.CategoryMachine, filepath.Join(t.TempDir(), "x.csv"))
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
