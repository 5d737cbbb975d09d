package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fulfill/internal/config"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"WORKORDER_USERNAME", "WORKORDER_PASSWORD",
		"ASD_USERNAME", "ASD_PASSWORD",
		"LOGISTICS_USERNAME", "LOGISTICS_PASSWORD",
		"SELF_PICKUP_STAFF", "BAIDU_OCR_API_KEY", "BAIDU_OCR_SECRET_KEY",
		"PUSHPLUS_TOKEN", "FULFILL_API_TOKEN", "FULFILL_LEDGER_DSN",
	} {
		// Register cleanup, then unset so .env loading can populate it.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(home)
	return home
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	home := isolateHome(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCookies := filepath.Join(home, ".local", "share", "fulfill", "cookies")
	if cfg.Paths.CookieDir != wantCookies {
		t.Fatalf("unexpected cookie dir: got %q want %q", cfg.Paths.CookieDir, wantCookies)
	}
	if cfg.Logistics.DaysBack != 29 {
		t.Fatalf("expected default days_back 29, got %d", cfg.Logistics.DaysBack)
	}
	if cfg.WorkOrder.LoginAttempts != 5 {
		t.Fatalf("expected 5 login attempts, got %d", cfg.WorkOrder.LoginAttempts)
	}
	if cfg.Workflow.IntervalMinutes != 30 {
		t.Fatalf("expected 30 minute interval, got %d", cfg.Workflow.IntervalMinutes)
	}
	if cfg.Notifications.Provider != config.ProviderNone {
		t.Fatalf("expected notifications disabled without tokens, got %q", cfg.Notifications.Provider)
	}
	if cfg.CookiePath("asd") != filepath.Join(wantCookies, "asd.json") {
		t.Fatalf("unexpected cookie path: %q", cfg.CookiePath("asd"))
	}
	if !strings.Contains(cfg.ExportPath("board"), "board") {
		t.Fatalf("export path must carry the category: %q", cfg.ExportPath("board"))
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CookieDir, cfg.Paths.ExportDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomTOMLPath(t *testing.T) {
	isolateHome(t)
	configPath := filepath.Join(t.TempDir(), "fulfill.toml")

	type payload struct {
		ASD struct {
			BaseURL  string `toml:"base_url"`
			Username string `toml:"username"`
		} `toml:"asd"`
		Logistics struct {
			DaysBack        int      `toml:"days_back"`
			SelfPickupStaff []string `toml:"self_pickup_staff"`
		} `toml:"logistics"`
	}
	custom := payload{}
	custom.ASD.BaseURL = "https://wms.example.com/"
	custom.ASD.Username = "picker"
	custom.Logistics.DaysBack = 7
	custom.Logistics.SelfPickupStaff = []string{" 张三 ", "", "李四", "张三"}

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q (exists=%v)", resolved, exists)
	}
	if cfg.ASD.BaseURL != "https://wms.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ASD.BaseURL)
	}
	if cfg.ASD.Username != "picker" {
		t.Fatalf("unexpected username %q", cfg.ASD.Username)
	}
	if cfg.Logistics.DaysBack != 7 {
		t.Fatalf("unexpected days_back %d", cfg.Logistics.DaysBack)
	}
	if got := strings.Join(cfg.Logistics.SelfPickupStaff, ","); got != "张三,李四" {
		t.Fatalf("unexpected staff list %q", got)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	isolateHome(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `workorder:
  base_url: https://wo.example.com
  username: clerk
  login_attempts: 2
workflow:
  interval_minutes: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.WorkOrder.BaseURL != "https://wo.example.com" || cfg.WorkOrder.Username != "clerk" {
		t.Fatalf("unexpected workorder section: %+v", cfg.WorkOrder)
	}
	if cfg.WorkOrder.LoginAttempts != 2 || cfg.Workflow.IntervalMinutes != 5 {
		t.Fatalf("unexpected numeric values: %+v %+v", cfg.WorkOrder, cfg.Workflow)
	}
}

func TestEnvFallbacksAndDotEnv(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "fulfill.toml")
	if err := os.WriteFile(configPath, []byte("[asd]\nusername = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	dotenv := "ASD_USERNAME=from-dotenv\nASD_PASSWORD=secret\nSELF_PICKUP_STAFF=王五, 赵六\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("LOGISTICS_PASSWORD", "exported")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ASD.Username != "from-file" {
		t.Fatalf("file value should win over env, got %q", cfg.ASD.Username)
	}
	if cfg.ASD.Password != "secret" {
		t.Fatalf("expected password from .env, got %q", cfg.ASD.Password)
	}
	if cfg.Logistics.Password != "exported" {
		t.Fatalf("expected exported env value, got %q", cfg.Logistics.Password)
	}
	if got := strings.Join(cfg.Logistics.SelfPickupStaff, "|"); got != "王五|赵六" {
		t.Fatalf("unexpected staff from env: %q", got)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad url", func(c *config.Config) { c.ASD.BaseURL = "ftp://x" }, "asd.base_url"},
		{"cipher key size", func(c *config.Config) { c.Cipher.KeyPrefix = "toolong" }, "cipher"},
		{"iv size", func(c *config.Config) { c.Cipher.IV = "short" }, "cipher.iv"},
		{"pushplus token", func(c *config.Config) { c.Notifications.Provider = config.ProviderPushPlus }, "pushplus_token"},
		{"postgres dsn", func(c *config.Config) { c.Ledger.Driver = config.LedgerDriverPostgres }, "ledger.dsn"},
		{"unknown driver", func(c *config.Config) { c.Ledger.Driver = "mysql" }, "ledger.driver"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Notifications.Provider = config.ProviderNone
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Logistics.CarrierCode != "shunfeng" {
		t.Fatalf("unexpected carrier code %q", cfg.Logistics.CarrierCode)
	}
}
