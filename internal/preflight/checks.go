package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"fulfill/internal/config"
	"fulfill/internal/ledger"
)

// CheckBackend verifies that a backend answers HTTP at all and that
// credentials are configured. Any status code counts as reachable; login is
// not attempted.
func CheckBackend(ctx context.Context, name, baseURL, username, password string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return Result{Name: name, Detail: "missing credentials"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("bad url (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%d)", base, resp.StatusCode)}
}

// CheckOCR verifies the captcha OCR keys are present.
func CheckOCR(cfg *config.Config) Result {
	const name = "Captcha OCR"
	if strings.TrimSpace(cfg.Captcha.APIKey) == "" || strings.TrimSpace(cfg.Captcha.SecretKey) == "" {
		return Result{Name: name, Detail: "api key or secret key missing"}
	}
	if strings.TrimSpace(cfg.Captcha.OCRURL) == "" || strings.TrimSpace(cfg.Captcha.TokenURL) == "" {
		return Result{Name: name, Detail: "endpoint missing"}
	}
	return Result{Name: name, Passed: true, Detail: "keys configured"}
}

// CheckNotifications verifies the notification provider is usable. A
// disabled provider passes.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"
	n := cfg.Notifications
	switch n.Provider {
	case config.ProviderNone, "":
		return Result{Name: name, Passed: true, Detail: "disabled"}
	case config.ProviderPushPlus:
		if strings.TrimSpace(n.PushPlusToken) == "" {
			return Result{Name: name, Detail: "pushplus token missing"}
		}
		return Result{Name: name, Passed: true, Detail: "pushplus"}
	case config.ProviderNtfy:
		if strings.TrimSpace(n.NtfyTopic) == "" {
			return Result{Name: name, Detail: "ntfy topic missing"}
		}
		return Result{Name: name, Passed: true, Detail: "ntfy " + n.NtfyTopic}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unknown provider %q", n.Provider)}
	}
}

// CheckLedger opens and closes the run ledger.
func CheckLedger(ctx context.Context, cfg *config.Config) Result {
	const name = "Run ledger"
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := ledger.Open(checkCtx, ledger.OptionsFromConfig(cfg))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	detail := store.Driver()
	if path := store.Path(); path != "" {
		detail += " " + path
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable (%v)", opErr.Err)
	}
	return err.Error()
}
