package wms

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"fulfill/internal/logging"
	"fulfill/internal/services"
	"fulfill/internal/session"
)

// System is the backend name used for cookies, logs, and notifications.
const System = "asd"

const (
	loginPath   = "/wms-web/security/login"
	mobileAgent = "okhttp/4.9.0"
)

// NewSession builds a session that presents itself as the handheld client.
func NewSession(system, baseURL string, store *session.CookieStore, opts ...session.Option) (*session.Session, error) {
	base := []session.Option{
		session.WithHeader("User-Agent", mobileAgent),
		session.WithHeader("Accept-Encoding", "identity"),
	}
	return session.New(system, baseURL, store, append(base, opts...)...)
}

type loginResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// SecurityLogin posts the wms-web form login with any extra fields and marks
// the session authenticated when the backend reports success.
func SecurityLogin(ctx context.Context, sess *session.Session, cred session.Credential, extra url.Values) error {
	sess.BeginLogin()
	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("password", cred.Password)
	form.Set("language", "zh_CN")
	for key, values := range extra {
		for _, value := range values {
			form.Add(key, value)
		}
	}

	var payload loginResponse
	if _, err := sess.PostFormJSON(ctx, loginPath, form, &payload); err != nil {
		sess.Invalidate()
		return services.Wrap(services.ErrAuth, sess.System(), "login", "login request failed", err)
	}
	if !payload.Success {
		sess.Invalidate()
		return services.Wrap(services.ErrAuth, sess.System(), "login", fmt.Sprintf("login rejected: %s", firstNonEmpty(payload.Msg, payload.Message, "unknown error")), nil)
	}
	sess.MarkAuthenticated()
	return nil
}

// Authenticator logs into the warehouse system.
type Authenticator struct {
	*session.Session
	logger *slog.Logger
}

// NewAuthenticator wraps a session built by NewSession.
func NewAuthenticator(sess *session.Session, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		Session: sess,
		logger:  logging.NewComponentLogger(logger, "wms-auth").With(logging.System(sess.System())),
	}
}

// Login performs the form login.
func (a *Authenticator) Login(ctx context.Context, cred session.Credential) error {
	if err := SecurityLogin(ctx, a.Session, cred, nil); err != nil {
		return err
	}
	a.logger.Info("warehouse login succeeded", logging.String(logging.FieldEventType, "login_succeeded"))
	return nil
}

// CheckValidity reports the in-memory state only. The warehouse system has no
// cheap validity check, so restored cookies are always followed by a fresh login.
func (a *Authenticator) CheckValidity(context.Context) bool {
	return a.IsAuthenticated()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
