package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, file, and bind address configuration.
type Paths struct {
	CookieDir   string `toml:"cookie_dir" yaml:"cookie_dir"`
	CaptchaPath string `toml:"captcha_path" yaml:"captcha_path"`
	ExportDir   string `toml:"export_dir" yaml:"export_dir"`
	LogDir      string `toml:"log_dir" yaml:"log_dir"`
	StateDir    string `toml:"state_dir" yaml:"state_dir"`
	APIBind     string `toml:"api_bind" yaml:"api_bind"`
	APIToken    string `toml:"api_token" yaml:"api_token"`
}

// WorkOrder contains settings for the work-order tracker.
type WorkOrder struct {
	BaseURL       string `toml:"base_url" yaml:"base_url"`
	Username      string `toml:"username" yaml:"username"`
	Password      string `toml:"password" yaml:"password"`
	Agency        string `toml:"agency" yaml:"agency"`
	LoginAttempts int    `toml:"login_attempts" yaml:"login_attempts"`
}

// ASD contains settings for the warehouse execution system.
type ASD struct {
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

// Logistics contains settings for the logistics (shipment) system.
type Logistics struct {
	BaseURL         string   `toml:"base_url" yaml:"base_url"`
	Username        string   `toml:"username" yaml:"username"`
	Password        string   `toml:"password" yaml:"password"`
	DaysBack        int      `toml:"days_back" yaml:"days_back"`
	CarrierName     string   `toml:"carrier_name" yaml:"carrier_name"`
	CarrierCode     string   `toml:"carrier_code" yaml:"carrier_code"`
	SelfPickupStaff []string `toml:"self_pickup_staff" yaml:"self_pickup_staff"`
}

// Captcha contains OCR service settings used to solve login captchas.
type Captcha struct {
	APIKey         string `toml:"api_key" yaml:"api_key"`
	SecretKey      string `toml:"secret_key" yaml:"secret_key"`
	TokenURL       string `toml:"token_url" yaml:"token_url"`
	OCRURL         string `toml:"ocr_url" yaml:"ocr_url"`
	ExpectedLength int    `toml:"expected_length" yaml:"expected_length"`
	Attempts       int    `toml:"attempts" yaml:"attempts"`
	SaveImage      bool   `toml:"save_image" yaml:"save_image"`
}

// Cipher contains the date-keyed password cipher parameters.
type Cipher struct {
	KeyPrefix string `toml:"key_prefix" yaml:"key_prefix"`
	KeySuffix string `toml:"key_suffix" yaml:"key_suffix"`
	IV        string `toml:"iv" yaml:"iv"`
}

// Notifications contains push notification settings.
type Notifications struct {
	Provider       string `toml:"provider" yaml:"provider"`
	PushPlusToken  string `toml:"pushplus_token" yaml:"pushplus_token"`
	PushPlusURL    string `toml:"pushplus_url" yaml:"pushplus_url"`
	NtfyTopic      string `toml:"ntfy_topic" yaml:"ntfy_topic"`
	TitlePrefix    string `toml:"title_prefix" yaml:"title_prefix"`
	RequestTimeout int    `toml:"request_timeout" yaml:"request_timeout"`
	LoginFailure   bool   `toml:"login_failure" yaml:"login_failure"`
	Errors         bool   `toml:"errors" yaml:"errors"`
	ProcessFailure bool   `toml:"process_failure" yaml:"process_failure"`
	Summary        bool   `toml:"summary" yaml:"summary"`
}

// Workflow contains run loop timing.
type Workflow struct {
	IntervalMinutes int `toml:"interval_minutes" yaml:"interval_minutes"`
}

// Ledger contains run history and orphaned order storage settings.
type Ledger struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Driver  string `toml:"driver" yaml:"driver"`
	Path    string `toml:"path" yaml:"path"`
	DSN     string `toml:"dsn" yaml:"dsn"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" yaml:"format"`
	Level         string `toml:"level" yaml:"level"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// Config encapsulates all configuration values for fulfill.
//
// Configuration sections by subsystem:
//   - Paths: cookie, captcha, export, log, and state locations plus the API bind address
//   - WorkOrder, ASD, Logistics: backend base URLs and credentials
//   - Captcha: OCR credentials and retry bounds
//   - Cipher: date-keyed password cipher parameters
//   - Notifications: PushPlus or ntfy delivery and per-event toggles
//   - Workflow: run interval
//   - Ledger: run history and orphaned order storage
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths" yaml:"paths"`
	WorkOrder     WorkOrder     `toml:"workorder" yaml:"workorder"`
	ASD           ASD           `toml:"asd" yaml:"asd"`
	Logistics     Logistics     `toml:"logistics" yaml:"logistics"`
	Captcha       Captcha       `toml:"captcha" yaml:"captcha"`
	Cipher        Cipher        `toml:"cipher" yaml:"cipher"`
	Notifications Notifications `toml:"notifications" yaml:"notifications"`
	Workflow      Workflow      `toml:"workflow" yaml:"workflow"`
	Ledger        Ledger        `toml:"ledger" yaml:"ledger"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config file (or in the
// working directory) is loaded first so credentials can live outside the config.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := decode(resolvedPath, data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
	}
}

func loadDotEnv(configPath string) error {
	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}

	seen := make(map[string]struct{}, len(candidates))
	var files []string
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			files = append(files, candidate)
		}
	}
	if len(files) == 0 {
		return nil
	}
	// godotenv.Load never overrides variables that are already exported.
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	for _, name := range []string{"fulfill.toml", "config.yaml"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the coordinator writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CookieDir, c.Paths.ExportDir, c.Paths.LogDir, c.Paths.StateDir}
	if c.Paths.CaptchaPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.CaptchaPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CookiePath returns the cookie persistence file for a backend system.
func (c *Config) CookiePath(system string) string {
	return filepath.Join(c.Paths.CookieDir, system+".json")
}

// ExportPath returns the destination file for a category export. The file name
// carries the category so parsing can infer it from the path.
func (c *Config) ExportPath(category string) string {
	return filepath.Join(c.Paths.ExportDir, "user_"+category+".csv")
}

// LedgerPath returns the SQLite ledger location.
func (c *Config) LedgerPath() string {
	if strings.TrimSpace(c.Ledger.Path) != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "fulfill.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
