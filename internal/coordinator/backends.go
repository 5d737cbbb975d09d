package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fulfill/internal/captcha"
	"fulfill/internal/cipher"
	"fulfill/internal/config"
	"fulfill/internal/fulfillment"
	"fulfill/internal/logistics"
	"fulfill/internal/session"
	"fulfill/internal/wms"
	"fulfill/internal/workorder"
)

// Exporter downloads the completed work orders of one category to a file.
type Exporter interface {
	Export(ctx context.Context, category fulfillment.Category, dest string) error
}

// Picker runs the picking saga.
type Picker interface {
	PickBatch(ctx context.Context, items []fulfillment.WorkItem) []fulfillment.PickResult
}

// Shipper queries and dispatches pending shipments.
type Shipper interface {
	GetPending(ctx context.Context, daysBack int) ([]fulfillment.ShipmentCandidate, error)
	ShipBatch(ctx context.Context, cands []fulfillment.ShipmentCandidate, names map[string]string) []fulfillment.ShipResult
}

// Login pairs a backend authenticator with its credentials.
type Login struct {
	Auth       session.Authenticator
	Credential session.Credential
}

// Backends is everything one run talks to. Logins are attempted in order.
type Backends struct {
	Logins   []Login
	Exporter Exporter
	Picker   Picker
	Shipper  Shipper
}

// BackendFactory builds fresh sessions for a run.
type BackendFactory func(ctx context.Context) (*Backends, error)

// HTTPBackends returns a factory that wires the real HTTP clients from cfg.
func HTTPBackends(cfg *config.Config, logger *slog.Logger) BackendFactory {
	return func(ctx context.Context) (*Backends, error) {
		return newHTTPBackends(cfg, logger)
	}
}

const requestTimeout = 60 * time.Second

func newHTTPBackends(cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	sessOpts := []session.Option{session.WithLogger(logger), session.WithTimeout(requestTimeout)}

	woSess, err := workorder.NewSession(cfg.WorkOrder.BaseURL, session.NewCookieStore(cfg.CookiePath(workorder.System)), sessOpts...)
	if err != nil {
		return nil, err
	}
	solver := newSolver(cfg, logger)
	encryptor := cipher.NewEncryptor(cfg.Cipher.KeyPrefix, cfg.Cipher.KeySuffix, cfg.Cipher.IV)
	woAuth := workorder.NewAuthenticator(woSess, solver, encryptor, workorder.LoginOptions{
		Attempts:        cfg.WorkOrder.LoginAttempts,
		CaptchaPath:     cfg.Paths.CaptchaPath,
		SaveCaptcha:     cfg.Captcha.SaveImage,
		CaptchaLength:   cfg.Captcha.ExpectedLength,
		CaptchaAttempts: cfg.Captcha.Attempts,
	}, logger)

	asdSess, err := wms.NewSession(wms.System, cfg.ASD.BaseURL, session.NewCookieStore(cfg.CookiePath(wms.System)), sessOpts...)
	if err != nil {
		return nil, err
	}
	logSess, err := logistics.NewSession(cfg.Logistics.BaseURL, session.NewCookieStore(cfg.CookiePath(logistics.System)), sessOpts...)
	if err != nil {
		return nil, err
	}

	return &Backends{
		Logins: []Login{
			{Auth: woAuth, Credential: session.Credential{Username: cfg.WorkOrder.Username, Password: cfg.WorkOrder.Password}},
			{Auth: wms.NewAuthenticator(asdSess, logger), Credential: session.Credential{Username: cfg.ASD.Username, Password: cfg.ASD.Password}},
			{Auth: logistics.NewAuthenticator(logSess, logger), Credential: session.Credential{Username: cfg.Logistics.Username, Password: cfg.Logistics.Password}},
		},
		Exporter: workorder.NewExporter(woSess, cfg.WorkOrder.Agency, logger),
		Picker:   wms.NewPicker(asdSess, logger),
		Shipper: logistics.NewShipper(logSess, logistics.ShipperOptions{
			DaysBack:        cfg.Logistics.DaysBack,
			CarrierName:     cfg.Logistics.CarrierName,
			CarrierCode:     cfg.Logistics.CarrierCode,
			SelfPickupStaff: cfg.Logistics.SelfPickupStaff,
		}, logger),
	}, nil
}

// newSolver keeps the solver's own per-request timeout for the OCR endpoints.
func newSolver(cfg *config.Config, logger *slog.Logger) *captcha.Solver {
	return captcha.NewSolver(captcha.Config{
		APIKey:    cfg.Captcha.APIKey,
		SecretKey: cfg.Captcha.SecretKey,
		TokenURL:  cfg.Captcha.TokenURL,
		OCRURL:    cfg.Captcha.OCRURL,
	}, captcha.WithLogger(logger))
}
