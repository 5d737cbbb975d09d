package captcha_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fulfill/internal/captcha"
	"fulfill/internal/services"
)

type ocrServer struct {
	tokenCalls atomic.Int32
	ocrCalls   atomic.Int32
	words      []string
	errorMsg   string
	lastForm   map[string]string
}

func (s *ocrServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		q := r.URL.Query()
		if q.Get("grant_type") != "client_credentials" || q.Get("client_id") != "key" || q.Get("client_secret") != "secret" {
			t.Errorf("unexpected token query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 2592000})
	})
	mux.HandleFunc("/ocr", func(w http.ResponseWriter, r *http.Request) {
		s.ocrCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		s.lastForm = map[string]string{}
		for key := range r.PostForm {
			s.lastForm[key] = r.PostForm.Get(key)
		}
		if s.errorMsg != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"error_code": 17, "error_msg": s.errorMsg})
			return
		}
		rows := make([]map[string]string, 0, len(s.words))
		for _, word := range s.words {
			rows = append(rows, map[string]string{"words": word})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"words_result": rows, "words_result_num": len(rows)})
	})
	return mux
}

func newSolver(t *testing.T, srv *ocrServer) *captcha.Solver {
	t.Helper()
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)
	return captcha.NewSolver(captcha.Config{
		APIKey:    "key",
		SecretKey: "secret",
		TokenURL:  ts.URL + "/oauth/2.0/token",
		OCRURL:    ts.URL + "/ocr",
	}, captcha.WithHTTPClient(ts.Client()))
}

func TestRecognizeJoinsWordsAndCachesToken(t *testing.T) {
	srv := &ocrServer{words: []string{"a B", "3\n", "x"}}
	solver := newSolver(t, srv)

	for i := 0; i < 2; i++ {
		text, err := solver.Recognize(context.Background(), []byte("png-bytes"))
		if err != nil {
			t.Fatalf("Recognize returned error: %v", err)
		}
		if text != "aB3x" {
			t.Fatalf("unexpected text %q", text)
		}
	}
	if got := srv.tokenCalls.Load(); got != 1 {
		t.Fatalf("expected token to be fetched once, got %d", got)
	}
	if srv.lastForm["access_token"] != "tok-1" {
		t.Fatalf("expected cached token on request, got %q", srv.lastForm["access_token"])
	}
	if srv.lastForm["image"] != base64.StdEncoding.EncodeToString([]byte("png-bytes")) {
		t.Fatalf("image must be base64 encoded, got %q", srv.lastForm["image"])
	}
	if srv.lastForm["language_type"] != "ENG" || srv.lastForm["detect_direction"] != "false" {
		t.Fatalf("unexpected OCR options: %v", srv.lastForm)
	}
}

func TestRecognizeReportsBackendError(t *testing.T) {
	srv := &ocrServer{errorMsg: "Open api qps request limit reached"}
	solver := newSolver(t, srv)

	_, err := solver.Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, services.ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

func TestRecognizeWithoutCredentialsIsConfigurationError(t *testing.T) {
	solver := captcha.NewSolver(captcha.Config{})
	if solver.Configured() {
		t.Fatal("solver without keys must not report configured")
	}
	_, err := solver.Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewSolverTimeout(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{name: "zero uses default", in: 0, want: 10 * time.Second},
		{name: "negative uses default", in: -time.Second, want: 10 * time.Second},
		{name: "explicit kept", in: 3 * time.Second, want: 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := captcha.NewSolver(captcha.Config{Timeout: tt.in})
			if got := s.Timeout(); got != tt.want {
				t.Fatalf("Timeout() = %s, want %s", got, tt.want)
			}
		})
	}
}
