package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fulfill/internal/services"
)

// CookieStore persists a flat cookie name to value map as JSON.
type CookieStore struct {
	path string
}

// NewCookieStore returns a store backed by path. An empty path disables
// persistence.
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// Path returns the backing file location.
func (s *CookieStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load reads the cookie map. A missing file reports ok=false with no error.
// A file that is not a JSON object fails with services.ErrValidation.
func (s *CookieStore) Load() (map[string]string, bool, error) {
	if s == nil || s.path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cookie file: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, false, services.Wrap(services.ErrValidation, "session", "load cookies", s.path, err)
	}
	if len(values) == 0 {
		return nil, false, nil
	}
	return values, true, nil
}

// Save writes the cookie map atomically with mode 0600.
func (s *CookieStore) Save(values map[string]string) error {
	if s == nil || s.path == "" {
		return nil
	}
	if values == nil {
		values = map[string]string{}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure cookie directory: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cookies-*")
	if err != nil {
		return fmt.Errorf("create cookie temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cookies: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod cookies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cookie temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}

// Remove deletes the cookie file if present.
func (s *CookieStore) Remove() error {
	if s == nil || s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}
