package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Backend credentials are not
// required here so that utility commands work before they are filled in; a run
// reports missing credentials when it tries to log in.
func (c *Config) Validate() error {
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateCaptcha(); err != nil {
		return err
	}
	if err := c.validateCipher(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackends() error {
	for key, value := range map[string]string{
		"workorder.base_url": c.WorkOrder.BaseURL,
		"asd.base_url":       c.ASD.BaseURL,
		"logistics.base_url": c.Logistics.BaseURL,
	} {
		if err := validateHTTPURL(key, value); err != nil {
			return err
		}
	}
	if c.WorkOrder.LoginAttempts < 1 {
		return errors.New("workorder.login_attempts must be positive")
	}
	if c.Logistics.DaysBack < 1 {
		return errors.New("logistics.days_back must be positive")
	}
	return nil
}

func (c *Config) validateCaptcha() error {
	if c.Captcha.Attempts < 1 {
		return errors.New("captcha.attempts must be positive")
	}
	if err := validateHTTPURL("captcha.token_url", c.Captcha.TokenURL); err != nil {
		return err
	}
	return validateHTTPURL("captcha.ocr_url", c.Captcha.OCRURL)
}

func (c *Config) validateCipher() error {
	keyLen := len(c.Cipher.KeyPrefix) + cipherDateLength + len(c.Cipher.KeySuffix)
	switch keyLen {
	case 16, 24, 32:
	default:
		return fmt.Errorf("cipher key_prefix and key_suffix must produce a 16, 24, or 32 byte key with the 8 digit date (got %d)", keyLen)
	}
	if len(c.Cipher.IV) != cipherBlockSize {
		return fmt.Errorf("cipher.iv must be %d bytes (got %d)", cipherBlockSize, len(c.Cipher.IV))
	}
	return nil
}

func (c *Config) validateNotifications() error {
	switch c.Notifications.Provider {
	case ProviderNone:
	case ProviderPushPlus:
		if c.Notifications.PushPlusToken == "" {
			return errors.New("notifications.pushplus_token must be set when notifications.provider is pushplus (or set PUSHPLUS_TOKEN)")
		}
	case ProviderNtfy:
		if c.Notifications.NtfyTopic == "" {
			return errors.New("notifications.ntfy_topic must be set when notifications.provider is ntfy")
		}
	default:
		return fmt.Errorf("notifications.provider: unsupported value %q", c.Notifications.Provider)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.IntervalMinutes < 1 {
		return errors.New("workflow.interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLedger() error {
	if !c.Ledger.Enabled {
		return nil
	}
	switch c.Ledger.Driver {
	case LedgerDriverSQLite:
	case LedgerDriverPostgres:
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			return errors.New("ledger.dsn must be set when ledger.driver is postgres (or set FULFILL_LEDGER_DSN)")
		}
	default:
		return fmt.Errorf("ledger.driver: unsupported value %q", c.Ledger.Driver)
	}
	return nil
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL (got %q)", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host", key)
	}
	return nil
}
