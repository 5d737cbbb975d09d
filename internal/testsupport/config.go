package testsupport

import (
	"path/filepath"
	"testing"

	"fulfill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Backends point at an unroutable address, credentials are filled in, and
// notifications are off until an option says otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CookieDir = filepath.Join(base, "cookies")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.CaptchaPath = filepath.Join(base, "captcha", "captcha.png")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	unroutable := "http://127.0.0.1:1"
	cfgVal.WorkOrder.BaseURL = unroutable
	cfgVal.WorkOrder.Username = "wo-user"
	cfgVal.WorkOrder.Password = "wo-pass"
	cfgVal.WorkOrder.LoginAttempts = 2
	cfgVal.ASD.BaseURL = unroutable
	cfgVal.ASD.Username = "asd-user"
	cfgVal.ASD.Password = "asd-pass"
	cfgVal.Logistics.BaseURL = unroutable
	cfgVal.Logistics.Username = "log-user"
	cfgVal.Logistics.Password = "log-pass"
	cfgVal.Captcha.APIKey = "ak"
	cfgVal.Captcha.SecretKey = "sk"
	cfgVal.Captcha.TokenURL = unroutable + "/oauth/2.0/token"
	cfgVal.Captcha.OCRURL = unroutable + "/rest/2.0/ocr/v1/general_basic"
	cfgVal.Notifications.Provider = config.ProviderNone
	cfgVal.Ledger.Enabled = true
	cfgVal.Ledger.Driver = config.LedgerDriverSQLite
	cfgVal.Ledger.Path = filepath.Join(base, "state", "ledger.db")
	cfgVal.Workflow.IntervalMinutes = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackend points every backend and the OCR endpoints at b.
func WithBackend(b *Backend) ConfigOption {
	return func(cb *configBuilder) {
		url := b.URL()
		cb.cfg.WorkOrder.BaseURL = url
		cb.cfg.ASD.BaseURL = url
		cb.cfg.Logistics.BaseURL = url
		cb.cfg.Captcha.TokenURL = url + TokenPath
		cb.cfg.Captcha.OCRURL = url + OCRPath
	}
}

// WithSelfPickupStaff sets the self-pickup staff list.
func WithSelfPickupStaff(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Logistics.SelfPickupStaff = names
	}
}

// WithoutLedger disables the run ledger.
func WithoutLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = false
	}
}

// WithPushPlus routes notifications to a PushPlus-compatible endpoint.
func WithPushPlus(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		n := &b.cfg.Notifications
		n.Provider = config.ProviderPushPlus
		n.PushPlusToken = "test-token"
		n.PushPlusURL = endpoint
		n.RequestTimeout = 2
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
