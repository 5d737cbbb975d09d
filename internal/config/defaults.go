package config

const (
	defaultConfigPath       = "~/.config/fulfill/config.toml"
	defaultCookieDir        = "~/.local/share/fulfill/cookies"
	defaultCaptchaPath      = "~/.local/share/fulfill/captcha.png"
	defaultExportDir        = "~/.local/share/fulfill/exports"
	defaultLogDir           = "~/.local/share/fulfill/logs"
	defaultStateDir         = "~/.local/share/fulfill/state"
	defaultAPIBind          = "127.0.0.1:7490"
	defaultWorkOrderBaseURL = "https://gd.anyserves56.com"
	defaultASDBaseURL       = "https://www.anyserves56.com"
	defaultLogisticsBaseURL = "https://www.anyserves56.com"
	defaultAgency           = "114"
	defaultLoginAttempts    = 5
	defaultDaysBack         = 29
	defaultCarrierName      = "顺丰速运"
	defaultCarrierCode      = "shunfeng"
	defaultCaptchaTokenURL  = "https://aip.baidubce.com/oauth/2.0/token"
	defaultCaptchaOCRURL    = "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate_basic"
	defaultCaptchaLength    = 4
	defaultCaptchaAttempts  = 3
	defaultCipherKeyPrefix  = "asd0"
	defaultCipherKeySuffix  = "bjsf"
	defaultCipherIV         = "dongjunyaoguoqip"
	defaultPushPlusURL      = "http://www.pushplus.plus/send"
	defaultTitlePrefix      = "工单系统"
	defaultNotifyTimeout    = 10
	defaultIntervalMinutes  = 30
	defaultLedgerDriver     = "sqlite"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	cipherDateLength        = 8
	cipherBlockSize         = 16
)

// Notification providers.
const (
	ProviderPushPlus = "pushplus"
	ProviderNtfy     = "ntfy"
	ProviderNone     = "none"
)

// Ledger drivers.
const (
	LedgerDriverSQLite   = "sqlite"
	LedgerDriverPostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CookieDir:   defaultCookieDir,
			CaptchaPath: defaultCaptchaPath,
			ExportDir:   defaultExportDir,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
			APIBind:     defaultAPIBind,
		},
		WorkOrder: WorkOrder{
			BaseURL:       defaultWorkOrderBaseURL,
			Agency:        defaultAgency,
			LoginAttempts: defaultLoginAttempts,
		},
		ASD: ASD{
			BaseURL: defaultASDBaseURL,
		},
		Logistics: Logistics{
			BaseURL:     defaultLogisticsBaseURL,
			DaysBack:    defaultDaysBack,
			CarrierName: defaultCarrierName,
			CarrierCode: defaultCarrierCode,
		},
		Captcha: Captcha{
			TokenURL:       defaultCaptchaTokenURL,
			OCRURL:         defaultCaptchaOCRURL,
			ExpectedLength: defaultCaptchaLength,
			Attempts:       defaultCaptchaAttempts,
			SaveImage:      true,
		},
		Cipher: Cipher{
			KeyPrefix: defaultCipherKeyPrefix,
			KeySuffix: defaultCipherKeySuffix,
			IV:        defaultCipherIV,
		},
		Notifications: Notifications{
			PushPlusURL:    defaultPushPlusURL,
			TitlePrefix:    defaultTitlePrefix,
			RequestTimeout: defaultNotifyTimeout,
			LoginFailure:   true,
			Errors:         true,
			ProcessFailure: true,
			Summary:        true,
		},
		Workflow: Workflow{
			IntervalMinutes: defaultIntervalMinutes,
		},
		Ledger: Ledger{
			Enabled: true,
			Driver:  defaultLedgerDriver,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
