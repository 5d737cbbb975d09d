package logistics

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"fulfill/internal/logging"
	"fulfill/internal/session"
	"fulfill/internal/wms"
)

// System is the backend name used for cookies, logs, and notifications.
const System = "logistics"

const collectPath = "/wms-web/oubweb/outboundSoController/collectSoOrderGroupByStatus.shtml"

// NewSession builds a logistics session. The logistics system shares the
// warehouse web stack, so it presents the same client headers.
func NewSession(baseURL string, store *session.CookieStore, opts ...session.Option) (*session.Session, error) {
	return wms.NewSession(System, baseURL, store, opts...)
}

// Authenticator logs into the logistics system.
type Authenticator struct {
	*session.Session
	logger *slog.Logger
}

// NewAuthenticator wraps a session built by NewSession.
func NewAuthenticator(sess *session.Session, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		Session: sess,
		logger:  logging.NewComponentLogger(logger, "logistics-auth").With(logging.System(System)),
	}
}

// Login performs the form login with an empty authCode field.
func (a *Authenticator) Login(ctx context.Context, cred session.Credential) error {
	if err := wms.SecurityLogin(ctx, a.Session, cred, url.Values{"authCode": {""}}); err != nil {
		return err
	}
	a.logger.Info("logistics login succeeded", logging.String(logging.FieldEventType, "login_succeeded"))
	return nil
}

// CheckValidity posts a one-row status aggregate. Any 200 means the cookies
// are still accepted and marks the session authenticated.
func (a *Authenticator) CheckValidity(ctx context.Context) bool {
	form := url.Values{}
	form.Set("page.currentPage", "1")
	form.Set("page.limitCount", "1")
	resp, err := a.PostForm(ctx, collectPath, form)
	if err != nil {
		a.logger.Debug("validity check failed", logging.Error(err))
		a.Invalidate()
		return false
	}
	if resp.StatusCode == http.StatusOK {
		a.MarkAuthenticated()
		return true
	}
	a.Invalidate()
	return false
}
