package workorder_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fulfill/internal/cipher"
	"fulfill/internal/services"
	"fulfill/internal/session"
	"fulfill/internal/workorder"
)

type fixedRecognizer struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (r *fixedRecognizer) Recognize(context.Context, []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.text, nil
}

type trackerServer struct {
	mu            sync.Mutex
	acceptCode    int
	loginForms    []map[string]string
	captchaServed int
	loggedIn      bool
}

func (s *trackerServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.php/Public/getImgCode.html", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.captchaServed++
		s.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	})
	mux.HandleFunc("/index.php/Public/login.html", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form := map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		s.mu.Lock()
		s.loginForms = append(s.loginForms, form)
		code := s.acceptCode
		if code == 0 {
			s.loggedIn = true
		}
		s.mu.Unlock()
		if code == 0 {
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "wo-session", Path: "/"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": "验证码错误"})
	})
	mux.HandleFunc("/index.php/Order/order/status/120.html", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("PHPSESSID"); err != nil || c.Value != "wo-session" {
			http.Redirect(w, r, "/index.php/Public/login.html", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("<title>服务工单列表</title>"))
	})
	return mux
}

func newTrackerAuth(t *testing.T, srv *trackerServer, rec *fixedRecognizer, opts workorder.LoginOptions) (*workorder.Authenticator, string) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	cookiePath := filepath.Join(t.TempDir(), "workorder.json")
	sess, err := workorder.NewSession(ts.URL, session.NewCookieStore(cookiePath))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	enc := cipher.NewEncryptor("", "", "")
	enc.Now = func() time.Time { return time.Date(2025, time.June, 1, 9, 0, 0, 0, time.Local) }
	return workorder.NewAuthenticator(sess, rec, enc, opts, nil), cookiePath
}

func TestLoginSendsEncryptedPasswordAndCaptcha(t *testing.T) {
	srv := &trackerServer{}
	rec := &fixedRecognizer{text: "ab12"}
	captchaPath := filepath.Join(t.TempDir(), "img", "captcha.png")
	auth, _ := newTrackerAuth(t, srv, rec, workorder.LoginOptions{CaptchaPath: captchaPath, SaveCaptcha: true})

	if err := auth.Login(context.Background(), session.Credential{Username: "clerk", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !auth.IsAuthenticated() {
		t.Fatal("expected authenticated session")
	}
	if len(srv.loginForms) != 1 {
		t.Fatalf("expected one login post, got %d", len(srv.loginForms))
	}
	form := srv.loginForms[0]
	want, _ := cipher.Encrypt("pw", []byte("asd020250601bjsf"), []byte(cipher.DefaultIV))
	if form["username"] != "clerk" || form["imgcode"] != "ab12" || form["event_submit_do_login"] != "submit" {
		t.Fatalf("unexpected login form %v", form)
	}
	if form["accesstoken"] != want {
		t.Fatalf("expected dated cipher token %q, got %q", want, form["accesstoken"])
	}
	if data, err := os.ReadFile(captchaPath); err != nil || len(data) == 0 {
		t.Fatalf("expected captcha image saved: %v", err)
	}
}

func TestLoginGivesUpAfterConfiguredAttempts(t *testing.T) {
	srv := &trackerServer{acceptCode: 1}
	rec := &fixedRecognizer{text: "ab12"}
	auth, cookiePath := newTrackerAuth(t, srv, rec, workorder.LoginOptions{Attempts: 3})

	err := auth.Login(context.Background(), session.Credential{Username: "clerk", Password: "pw"})
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if len(srv.loginForms) != 3 || srv.captchaServed != 3 {
		t.Fatalf("expected 3 attempts each with a fresh captcha, got posts=%d captchas=%d", len(srv.loginForms), srv.captchaServed)
	}
	if auth.IsAuthenticated() {
		t.Fatal("failed login must leave the session unauthenticated")
	}
	if _, err := os.Stat(cookiePath); !os.IsNotExist(err) {
		t.Fatal("failed login must not persist cookies")
	}
}

func TestLoginWrongCaptchaLengthRefetches(t *testing.T) {
	srv := &trackerServer{}
	rec := &fixedRecognizer{text: "abc"}
	auth, _ := newTrackerAuth(t, srv, rec, workorder.LoginOptions{Attempts: 2, CaptchaAttempts: 3})

	err := auth.Login(context.Background(), session.Credential{Username: "clerk", Password: "pw"})
	if !errors.Is(err, services.ErrAuth) || !errors.Is(err, services.ErrExhausted) {
		t.Fatalf("expected exhausted auth error, got %v", err)
	}
	if rec.calls != 6 || srv.captchaServed != 6 {
		t.Fatalf("expected 2x3 captcha recognitions, got calls=%d served=%d", rec.calls, srv.captchaServed)
	}
	if len(srv.loginForms) != 0 {
		t.Fatal("no login should be posted without a usable captcha")
	}
}

func TestEnsureLoginReusesPersistedCookies(t *testing.T) {
	srv := &trackerServer{}
	rec := &fixedRecognizer{text: "ab12"}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	cookiePath := filepath.Join(t.TempDir(), "workorder.json")
	cred := session.Credential{Username: "clerk", Password: "pw"}

	for run := 0; run < 2; run++ {
		sess, err := workorder.NewSession(ts.URL, session.NewCookieStore(cookiePath))
		if err != nil {
			t.Fatalf("NewSession: %v", err)
		}
		auth := workorder.NewAuthenticator(sess, rec, nil, workorder.LoginOptions{}, nil)
		if err := session.EnsureLogin(context.Background(), auth, cred, nil); err != nil {
			t.Fatalf("run %d EnsureLogin: %v", run, err)
		}
	}
	if len(srv.loginForms) != 1 {
		t.Fatalf("expected second run to reuse cookies, got %d logins", len(srv.loginForms))
	}
}

func TestCheckValidityRejectsRedirect(t *testing.T) {
	srv := &trackerServer{}
	auth, _ := newTrackerAuth(t, srv, &fixedRecognizer{text: "ab12"}, workorder.LoginOptions{})
	if auth.CheckValidity(context.Background()) {
		t.Fatal("expected the validity check to fail without a session cookie")
	}
}
