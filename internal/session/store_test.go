package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fulfill/internal/services"
	"fulfill/internal/session"
)

func TestCookieStoreMissingFile(t *testing.T) {
	store := session.NewCookieStore(filepath.Join(t.TempDir(), "asd.json"))
	values, ok, err := store.Load()
	if err != nil || ok || values != nil {
		t.Fatalf("expected empty result for missing file, got %v %v %v", values, ok, err)
	}
}

func TestCookieStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workorder.json")
	store := session.NewCookieStore(path)
	if err := store.Save(map[string]string{"PHPSESSID": "abc", "lang": "zh"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
	values, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if values["PHPSESSID"] != "abc" || values["lang"] != "zh" {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestCookieStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logistics.json")
	if err := os.WriteFile(path, []byte("[not an object"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, ok, err := session.NewCookieStore(path).Load()
	if ok || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got ok=%v err=%v", ok, err)
	}
}

func TestCookieStoreRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asd.json")
	store := session.NewCookieStore(path)
	if err := store.Save(map[string]string{"a": "b"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file gone, got %v", err)
	}
}
