package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
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

const (
	DefaultTokenURL = "https://aip.baidubce.com/oauth/2.0/token"
	DefaultOCRURL   = "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate_basic"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Recognizer turns a captcha image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Config holds OCR endpoint credentials.
type Config struct {
	APIKey    string
	SecretKey string
	TokenURL  string
	OCRURL    string
	Timeout   time.Duration
}

// Solver is a Recognizer backed by the Baidu OCR accurate_basic endpoint. The
// access token is fetched once and cached for the lifetime of the Solver.
type Solver struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Solver.
type Option func(*Solver)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(client *http.Client) Option {
	return func(s *Solver) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) {
		s.logger = logging.NewComponentLogger(logger, "captcha")
	}
}

// NewSolver constructs a Solver. Blank URLs fall back to the public Baidu endpoints.
func NewSolver(cfg Config, opts ...Option) *Solver {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if strings.TrimSpace(cfg.OCRURL) == "" {
		cfg.OCRURL = DefaultOCRURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	s := &Solver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout is the per-request limit applied to token and OCR calls.
func (s *Solver) Timeout() time.Duration {
	return s.cfg.Timeout
}

// Configured reports whether both OCR credentials are present.
func (s *Solver) Configured() bool {
	return s != nil && s.cfg.APIKey != "" && s.cfg.SecretKey != ""
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type ocrResponse struct {
	WordsResult []struct {
		Words string `json:"words"`
	} `json:"words_result"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Recognize returns the captcha text with spaces and newlines removed.
func (s *Solver) Recognize(ctx context.Context, image []byte) (string, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("access_token", token)
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	form.Set("language_type", "ENG")
	form.Set("detect_direction", "false")

	var payload ocrResponse
	if err := s.postForm(ctx, s.cfg.OCRURL, nil, form, &payload); err != nil {
		return "", services.Wrap(services.ErrTransport, "captcha", "recognize", "ocr request failed", err)
	}
	if payload.ErrorMsg != "" {
		return "", services.Wrap(services.ErrBackend, "captcha", "recognize",
			fmt.Sprintf("ocr error %d: %s", payload.ErrorCode, payload.ErrorMsg), nil)
	}
	if len(payload.WordsResult) == 0 {
		return "", services.Wrap(services.ErrBackend, "captcha", "recognize", "ocr returned no words", nil)
	}
	var b strings.Builder
	for _, word := range payload.WordsResult {
		b.WriteString(word.Words)
	}
	text := strings.NewReplacer(" ", "", "\n", "").Replace(b.String())
	s.logger.Debug("captcha recognized", logging.String("text", text))
	return text, nil
}

func (s *Solver) accessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	if !s.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "captcha", "token",
			"ocr api_key and secret_key are required (set BAIDU_OCR_API_KEY and BAIDU_OCR_SECRET_KEY)", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	query := url.Values{}
	query.Set("grant_type", "client_credentials")
	query.Set("client_id", s.cfg.APIKey)
	query.Set("client_secret", s.cfg.SecretKey)

	var payload tokenResponse
	if err := s.postForm(ctx, s.cfg.TokenURL, query, nil, &payload); err != nil {
		return "", services.Wrap(services.ErrTransport, "captcha", "token", "token request failed", err)
	}
	if payload.AccessToken == "" {
		detail := strings.TrimSpace(payload.Error + " " + payload.ErrorDescription)
		if detail == "" {
			detail = "response carried no access_token"
		}
		return "", services.Wrap(services.ErrAuth, "captcha", "token", detail, nil)
	}
	s.token = payload.AccessToken
	s.logger.Debug("ocr access token obtained")
	return s.token, nil
}

func (s *Solver) postForm(ctx context.Context, endpoint string, query, form url.Values, out any) error {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + query.Encode()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
