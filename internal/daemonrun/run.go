package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fulfill/internal/config"
	"fulfill/internal/coordinator"
	"fulfill/internal/daemon"
	"fulfill/internal/ledger"
	"fulfill/internal/logging"
	"fulfill/internal/notifications"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Stdout mirrors the log to standard output in addition to the run log.
	Stdout bool
}

// Run starts the fulfill daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("fulfill-%s.log", stamp))
	outputs := []string{logPath}
	if opts.Stdout {
		outputs = append([]string{"stdout"}, outputs...)
	}
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "fulfill-*.log", logPath)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := OpenLedger(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open run ledger", logging.Error(err))
		return err
	}

	coordOpts := []coordinator.Option{coordinator.WithNotifier(notifications.NewService(cfg))}
	if store != nil {
		coordOpts = append(coordOpts, coordinator.WithRecorder(store))
	}
	coord := coordinator.New(cfg, logger, coordOpts...)

	d, err := daemon.New(cfg, coord, store, logger)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other fulfill instance or remove a stale lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("fulfill daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// PIDPath is where the daemon records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "fulfill.pid")
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(cfg *config.Config) (int, error) {
	raw, err := os.ReadFile(PIDPath(cfg))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

// OpenLedger opens the configured run ledger. It returns nil, nil when the
// ledger is disabled.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ledger.Store, error) {
	if !cfg.Ledger.Enabled {
		if logger != nil {
			logger.Info("run ledger disabled", logging.String(logging.FieldEventType, "ledger_disabled"))
		}
		return nil, nil
	}
	store, err := ledger.Open(ctx, ledger.OptionsFromConfig(cfg))
	if err != nil {
		if errors.Is(err, ledger.ErrSchemaMismatch) {
			return nil, fmt.Errorf("%w: move %s aside to start a fresh ledger", err, cfg.LedgerPath())
		}
		return nil, err
	}
	return store, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("workorder_url", cfg.WorkOrder.BaseURL),
		logging.String("asd_url", cfg.ASD.BaseURL),
		logging.String("logistics_url", cfg.Logistics.BaseURL),
		logging.Bool("ocr_key_present", strings.TrimSpace(cfg.Captcha.APIKey) != ""),
		logging.String("notification_provider", cfg.Notifications.Provider),
		logging.Bool("ledger_enabled", cfg.Ledger.Enabled),
		logging.String("ledger_driver", cfg.Ledger.Driver),
		logging.Int("interval_minutes", cfg.Workflow.IntervalMinutes),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}
