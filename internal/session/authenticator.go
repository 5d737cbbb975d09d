package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fulfill/internal/logging"
	"fulfill/internal/services"
)

// Credential is a username and password pair for one backend system.
type Credential struct {
	Username string
	Password string
}

// Complete reports whether both fields are set.
func (c Credential) Complete() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// Authenticator is implemented by each backend system.
type Authenticator interface {
	System() string
	Login(ctx context.Context, cred Credential) error
	CheckValidity(ctx context.Context) bool
	PersistSession() error
	RestoreSession() (bool, error)
}

// EnsureLogin restores persisted cookies, checks validity, and falls back to a
// full login. A successful login is persisted immediately. Failures are tagged
// services.ErrAuth.
func EnsureLogin(ctx context.Context, auth Authenticator, cred Credential, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	system := auth.System()
	logger = logger.With(logging.System(system))

	restored, err := auth.RestoreSession()
	if err != nil {
		logging.WarnWithContext(logger, "stored cookies unreadable; ignoring", "cookie_restore_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file is replaced after the next successful login"),
			logging.String(logging.FieldImpact, "a full login is required"),
		)
	}
	if restored {
		if auth.CheckValidity(ctx) {
			logger.Info("session restored from cookies", logging.String(logging.FieldEventType, "session_restored"))
			return nil
		}
		logger.Info("stored cookies expired; logging in", logging.String(logging.FieldEventType, "session_expired"))
	}

	if !cred.Complete() {
		return services.Wrap(services.ErrAuth, system, "login", "missing credentials", errors.Join(services.ErrConfiguration, errMissingCredentials))
	}

	if err := auth.Login(ctx, cred); err != nil {
		if errors.Is(err, services.ErrAuth) {
			return err
		}
		return services.Wrap(services.ErrAuth, system, "login", "login failed", err)
	}

	if err := auth.PersistSession(); err != nil {
		logging.WarnWithContext(logger, "cookie persistence failed", "cookie_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.cookie_dir permissions"),
			logging.String(logging.FieldImpact, "next run logs in again"),
		)
	}
	logger.Info("login succeeded",
		logging.String(logging.FieldEventType, "login_succeeded"),
		logging.String("username", cred.Username),
	)
	return nil
}
