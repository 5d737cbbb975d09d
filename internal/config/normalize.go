package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkOrder()
	c.normalizeASD()
	c.normalizeLogistics()
	c.normalizeCaptcha()
	c.normalizeCipher()
	c.normalizeNotifications()
	if c.Workflow.IntervalMinutes <= 0 {
		c.Workflow.IntervalMinutes = defaultIntervalMinutes
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.cookie_dir", &c.Paths.CookieDir, defaultCookieDir},
		{"paths.captcha_path", &c.Paths.CaptchaPath, defaultCaptchaPath},
		{"paths.export_dir", &c.Paths.ExportDir, defaultExportDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("FULFILL_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeWorkOrder() {
	c.WorkOrder.BaseURL = trimBaseURL(c.WorkOrder.BaseURL, defaultWorkOrderBaseURL)
	c.WorkOrder.Username = envFallback(c.WorkOrder.Username, "WORKORDER_USERNAME")
	c.WorkOrder.Password = envFallback(c.WorkOrder.Password, "WORKORDER_PASSWORD")
	c.WorkOrder.Agency = strings.TrimSpace(c.WorkOrder.Agency)
	if c.WorkOrder.Agency == "" {
		c.WorkOrder.Agency = defaultAgency
	}
	if c.WorkOrder.LoginAttempts <= 0 {
		c.WorkOrder.LoginAttempts = defaultLoginAttempts
	}
}

func (c *Config) normalizeASD() {
	c.ASD.BaseURL = trimBaseURL(c.ASD.BaseURL, defaultASDBaseURL)
	c.ASD.Username = envFallback(c.ASD.Username, "ASD_USERNAME")
	c.ASD.Password = envFallback(c.ASD.Password, "ASD_PASSWORD")
}

func (c *Config) normalizeLogistics() {
	c.Logistics.BaseURL = trimBaseURL(c.Logistics.BaseURL, defaultLogisticsBaseURL)
	c.Logistics.Username = envFallback(c.Logistics.Username, "LOGISTICS_USERNAME")
	c.Logistics.Password = envFallback(c.Logistics.Password, "LOGISTICS_PASSWORD")
	if c.Logistics.DaysBack <= 0 {
		c.Logistics.DaysBack = defaultDaysBack
	}
	c.Logistics.CarrierName = strings.TrimSpace(c.Logistics.CarrierName)
	if c.Logistics.CarrierName == "" {
		c.Logistics.CarrierName = defaultCarrierName
	}
	c.Logistics.CarrierCode = strings.TrimSpace(c.Logistics.CarrierCode)
	if c.Logistics.CarrierCode == "" {
		c.Logistics.CarrierCode = defaultCarrierCode
	}
	staff := c.Logistics.SelfPickupStaff
	if len(staff) == 0 {
		if value := lookupEnv("SELF_PICKUP_STAFF"); value != "" {
			staff = strings.Split(value, ",")
		}
	}
	c.Logistics.SelfPickupStaff = normalizeNames(staff)
}

func (c *Config) normalizeCaptcha() {
	c.Captcha.APIKey = envFallback(c.Captcha.APIKey, "BAIDU_OCR_API_KEY")
	c.Captcha.SecretKey = envFallback(c.Captcha.SecretKey, "BAIDU_OCR_SECRET_KEY")
	c.Captcha.TokenURL = strings.TrimSpace(c.Captcha.TokenURL)
	if c.Captcha.TokenURL == "" {
		c.Captcha.TokenURL = defaultCaptchaTokenURL
	}
	c.Captcha.OCRURL = strings.TrimSpace(c.Captcha.OCRURL)
	if c.Captcha.OCRURL == "" {
		c.Captcha.OCRURL = defaultCaptchaOCRURL
	}
	if c.Captcha.ExpectedLength < 0 {
		c.Captcha.ExpectedLength = 0
	}
	if c.Captcha.Attempts <= 0 {
		c.Captcha.Attempts = defaultCaptchaAttempts
	}
}

func (c *Config) normalizeCipher() {
	if c.Cipher.KeyPrefix == "" && c.Cipher.KeySuffix == "" {
		c.Cipher.KeyPrefix = defaultCipherKeyPrefix
		c.Cipher.KeySuffix = defaultCipherKeySuffix
	}
	if c.Cipher.IV == "" {
		c.Cipher.IV = defaultCipherIV
	}
}

func (c *Config) normalizeNotifications() {
	n := &c.Notifications
	n.PushPlusToken = envFallback(n.PushPlusToken, "PUSHPLUS_TOKEN")
	n.NtfyTopic = strings.TrimSpace(n.NtfyTopic)
	n.PushPlusURL = strings.TrimSpace(n.PushPlusURL)
	if n.PushPlusURL == "" {
		n.PushPlusURL = defaultPushPlusURL
	}
	n.TitlePrefix = strings.TrimSpace(n.TitlePrefix)
	if n.TitlePrefix == "" {
		n.TitlePrefix = defaultTitlePrefix
	}
	if n.RequestTimeout <= 0 {
		n.RequestTimeout = defaultNotifyTimeout
	}
	n.Provider = strings.ToLower(strings.TrimSpace(n.Provider))
	if n.Provider == "" {
		switch {
		case n.PushPlusToken != "":
			n.Provider = ProviderPushPlus
		case n.NtfyTopic != "":
			n.Provider = ProviderNtfy
		default:
			n.Provider = ProviderNone
		}
	}
}

func (c *Config) normalizeLedger() error {
	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = defaultLedgerDriver
	}
	c.Ledger.DSN = envFallback(c.Ledger.DSN, "FULFILL_LEDGER_DSN")
	if strings.TrimSpace(c.Ledger.Path) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Ledger.Path))
		if err != nil {
			return fmt.Errorf("ledger.path: %w", err)
		}
		c.Ledger.Path = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func trimBaseURL(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}

func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return lookupEnv(key)
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func normalizeNames(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		name := strings.TrimSpace(value)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
