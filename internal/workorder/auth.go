package workorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fulfill/internal/captcha"
	"fulfill/internal/cipher"
	"fulfill/internal/logging"
	"fulfill/internal/retry"
	"fulfill/internal/services"
	"fulfill/internal/session"
)

// System is the backend name used for cookies, logs, and notifications.
const System = "workorder"

const (
	captchaPath     = "/index.php/Public/getImgCode.html"
	loginPath       = "/index.php/Public/login.html"
	validityPath    = "/index.php/Order/order/status/120.html"
	validityMarker  = "服务工单"
	browserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultAttempts = 5
)

// NewSession builds a session carrying the headers the tracker's AJAX
// endpoints expect.
func NewSession(baseURL string, store *session.CookieStore, opts ...session.Option) (*session.Session, error) {
	base := []session.Option{
		session.WithHeader("Accept", "application/json, text/javascript, */*; q=0.01"),
		session.WithHeader("Accept-Language", "zh-CN,zh;q=0.9"),
		session.WithHeader("X-Requested-With", "XMLHttpRequest"),
		session.WithHeader("User-Agent", browserAgent),
	}
	return session.New(System, baseURL, store, append(base, opts...)...)
}

// LoginOptions tunes the captcha login.
type LoginOptions struct {
	Attempts        int
	CaptchaPath     string
	SaveCaptcha     bool
	CaptchaLength   int
	CaptchaAttempts int
}

// Authenticator logs into the work-order tracker.
type Authenticator struct {
	*session.Session

	recognizer captcha.Recognizer
	encryptor  *cipher.Encryptor
	opts       LoginOptions
	logger     *slog.Logger
}

// NewAuthenticator wires the captcha recognizer and password cipher into a
// session.
func NewAuthenticator(sess *session.Session, recognizer captcha.Recognizer, encryptor *cipher.Encryptor, opts LoginOptions, logger *slog.Logger) *Authenticator {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if encryptor == nil {
		encryptor = cipher.NewEncryptor("", "", "")
	}
	return &Authenticator{
		Session:    sess,
		recognizer: recognizer,
		encryptor:  encryptor,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "workorder-auth").With(logging.System(System)),
	}
}

type loginResponse struct {
	Code json.Number `json:"code"`
	Msg  string      `json:"msg"`
}

// Login runs up to opts.Attempts captcha logins. Each attempt fetches a new
// captcha, so a misread never blocks the next try.
func (a *Authenticator) Login(ctx context.Context, cred session.Credential) error {
	a.BeginLogin()
	policy := retry.Policy{MaxAttempts: a.opts.Attempts}
	_, _, err := retry.Do(ctx, policy, "workorder login", func(ctx context.Context, attempt int) (struct{}, error) {
		err := a.attempt(ctx, cred)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, services.ErrConfiguration) {
			return struct{}{}, retry.Permanent(err)
		}
		a.logger.Warn("login attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", a.opts.Attempts),
			logging.Error(err),
		)
		return struct{}{}, err
	})
	if err != nil {
		a.Invalidate()
		return services.Wrap(services.ErrAuth, System, "login", "login failed", err)
	}
	a.MarkAuthenticated()
	a.logger.Info("work-order login succeeded", logging.String(logging.FieldEventType, "login_succeeded"))
	return nil
}

func (a *Authenticator) attempt(ctx context.Context, cred session.Credential) error {
	code, err := captcha.RecognizeWithRetry(ctx, a.recognizer, a.fetchCaptcha, a.opts.CaptchaLength, a.opts.CaptchaAttempts, a.logger)
	if err != nil {
		return err
	}
	token, err := a.encryptor.EncryptPassword(cred.Password)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, System, "login", "encrypt password", err)
	}

	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("accesstoken", token)
	form.Set("imgcode", code)
	form.Set("event_submit_do_login", "submit")

	var payload loginResponse
	if _, err := a.PostFormJSON(ctx, loginPath, form, &payload); err != nil {
		return err
	}
	if payload.Code.String() != "0" {
		msg := strings.TrimSpace(payload.Msg)
		if msg == "" {
			msg = "login rejected"
		}
		return services.Wrap(services.ErrBackend, System, "login", fmt.Sprintf("code %s: %s", payload.Code, msg), nil)
	}
	return nil
}

func (a *Authenticator) fetchCaptcha(ctx context.Context) ([]byte, error) {
	resp, err := a.Get(ctx, captchaPath, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() || len(resp.Body) == 0 {
		return nil, services.Wrap(services.ErrTransport, System, "captcha", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	if a.opts.SaveCaptcha && a.opts.CaptchaPath != "" {
		if err := saveImage(a.opts.CaptchaPath, resp.Body); err != nil {
			a.logger.Debug("captcha image not saved", logging.String("captcha_path", a.opts.CaptchaPath), logging.Error(err))
		}
	}
	return resp.Body, nil
}

func saveImage(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// CheckValidity requests an order list page without following redirects. An
// expired session is redirected to the login page.
func (a *Authenticator) CheckValidity(ctx context.Context) bool {
	resp, err := a.GetNoRedirect(ctx, validityPath, nil)
	if err != nil {
		a.logger.Debug("validity check failed", logging.Error(err))
		a.Invalidate()
		return false
	}
	if resp.StatusCode == http.StatusOK && strings.Contains(string(resp.Body), validityMarker) {
		a.MarkAuthenticated()
		return true
	}
	a.Invalidate()
	return false
}
