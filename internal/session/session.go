package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fulfill/internal/logging"
	"fulfill/internal/services"
)

// State is the authentication state of a Session.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

const maxResponseBytes = 32 << 20

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Session is the HTTP session for one backend system. It is safe for
// sequential use from one goroutine at a time; the state fields are guarded so
// the daemon API can read State concurrently.
type Session struct {
	system  string
	baseURL *url.URL
	client  *http.Client
	jar     *recordingJar
	store   *CookieStore
	headers http.Header
	logger  *slog.Logger

	mu    sync.RWMutex
	state State
}

// Option configures a Session.
type Option func(*Session)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTransport overrides the HTTP transport (tests).
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Session) {
		if rt != nil {
			s.client.Transport = rt
		}
	}
}

// WithTimeout sets a per-request timeout. Zero leaves requests bounded only by
// their context.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.client.Timeout = d
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(s *Session) {
		s.headers.Set(key, value)
	}
}

// New builds a Session for system rooted at baseURL.
func New(system, baseURL string, store *CookieStore, opts ...Option) (*Session, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, system, "session", fmt.Sprintf("invalid base url %q", baseURL), err)
	}
	jar, err := newJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	s := &Session{
		system:  system,
		baseURL: parsed,
		client:  &http.Client{Jar: jar},
		jar:     jar,
		store:   store,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "session").With(logging.System(system))
	return s, nil
}

// System returns the backend system name.
func (s *Session) System() string { return s.system }

// BaseURL returns the backend root URL.
func (s *Session) BaseURL() string { return s.baseURL.String() }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the last login or validity check succeeded.
func (s *Session) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// BeginLogin moves the session to Authenticating.
func (s *Session) BeginLogin() { s.setState(Authenticating) }

// MarkAuthenticated moves the session to Authenticated.
func (s *Session) MarkAuthenticated() { s.setState(Authenticated) }

// Invalidate drops the session back to Unauthenticated.
func (s *Session) Invalidate() { s.setState(Unauthenticated) }

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.logger.Debug("session state changed",
			logging.String("from", prev.String()),
			logging.String("to", state.String()),
		)
	}
}

// Cookies returns every cookie the backend has set, by name.
func (s *Session) Cookies() map[string]string {
	return s.jar.snapshot()
}

// PersistSession writes the recorded cookies to the cookie store. It refuses
// to persist an unauthenticated session.
func (s *Session) PersistSession() error {
	if !s.IsAuthenticated() {
		return services.Wrap(services.ErrAuth, s.system, "persist", "session is not authenticated", nil)
	}
	if err := s.store.Save(s.jar.snapshot()); err != nil {
		return err
	}
	s.logger.Debug("cookies persisted", logging.String("cookie_path", s.store.Path()))
	return nil
}

// RestoreSession loads persisted cookies into the jar. It reports false when
// no cookies were stored. Restoring never marks the session authenticated;
// the system's validity check decides that.
func (s *Session) RestoreSession() (bool, error) {
	values, ok, err := s.store.Load()
	if err != nil || !ok {
		return false, err
	}
	s.jar.seed(s.baseURL, values)
	s.logger.Debug("cookies restored",
		logging.String("cookie_path", s.store.Path()),
		logging.Int("cookies", len(values)),
	)
	return true, nil
}

// Get issues a GET to path with query parameters.
func (s *Session) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return s.do(ctx, s.client, http.MethodGet, path, query, nil, "")
}

// GetNoRedirect issues a GET that returns redirects instead of following them.
func (s *Session) GetNoRedirect(ctx context.Context, path string, query url.Values) (*Response, error) {
	client := *s.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return s.do(ctx, &client, http.MethodGet, path, query, nil, "")
}

// PostForm issues a form-encoded POST.
func (s *Session) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return s.do(ctx, s.client, http.MethodPost, path, nil, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded; charset=UTF-8")
}

// PostFormJSON issues a form POST and decodes a JSON response into out. A
// non-2xx status is a transport error; an undecodable body is a backend error.
func (s *Session) PostFormJSON(ctx context.Context, path string, form url.Values, out any) (*Response, error) {
	resp, err := s.PostForm(ctx, path, form)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, services.Wrap(services.ErrTransport, s.system, path, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return resp, services.Wrap(services.ErrBackend, s.system, path, "decode response", err)
	}
	return resp, nil
}

// Open issues a GET and hands back the live response so large bodies can be
// streamed. The caller must close the body.
func (s *Session) Open(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := s.newRequest(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, s.system, path, "request failed", err)
	}
	return resp, nil
}

func (s *Session) do(ctx context.Context, client *http.Client, method, path string, query url.Values, body io.Reader, contentType string) (*Response, error) {
	req, err := s.newRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, s.system, path, "request failed", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, s.system, path, "read response", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (s *Session) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, s.system, path, "build request", err)
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (s *Session) resolve(path string) (*url.URL, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, services.Wrap(services.ErrTransport, s.system, path, "parse url", err)
		}
		return u, nil
	}
	u := *s.baseURL
	u.Path = strings.TrimRight(s.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	return &u, nil
}

var errMissingCredentials = errors.New("username and password are required")
