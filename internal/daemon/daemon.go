package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fulfill/internal/api"
	"fulfill/internal/config"
	"fulfill/internal/coordinator"
	"fulfill/internal/ledger"
	"fulfill/internal/logging"
)

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another fulfill instance is already running")

var errLedgerDisabled = errors.New("run ledger disabled")

// Daemon runs the coordinator loop and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	coord  *coordinator.Coordinator
	store  *ledger.Store
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	LedgerPath   string
	Coordinator  coordinator.Status
	OpenOrphans  int
}

// New constructs a daemon. store may be nil when the ledger is disabled.
func New(cfg *config.Config, coord *coordinator.Coordinator, store *ledger.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || coord == nil {
		return nil, errors.New("daemon requires config and coordinator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		coord:    coord,
		store:    store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// AcquireLock takes the single-instance lock without starting anything. It is
// used by one-shot commands that must not overlap a daemon.
func AcquireLock(cfg *config.Config) (*flock.Flock, error) {
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Start acquires the lock, starts the API server, and launches the loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.coord.Loop(runCtx); err != nil {
			d.logger.Error("coordinator loop exited", logging.Error(err))
		}
	}()

	d.cancel = cancel
	d.done = done
	d.running.Store(true)
	d.logger.Info("fulfill daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Duration("interval", d.coord.Interval()),
	)
	return nil
}

// Stop cancels the loop, waits for the current run to finish, and releases
// the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.cancel()
	<-d.done
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.cancel = nil
	d.done = nil
	d.running.Store(false)
	d.logger.Info("fulfill daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Done is closed when the loop exits. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Close stops the daemon and releases the ledger.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddress returns the bound API address, or "" when the API is off.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// TriggerRun asks the loop to start the next run now.
func (d *Daemon) TriggerRun() (bool, string) {
	if !d.running.Load() {
		return false, "daemon is not running"
	}
	if d.coord.Status().InRun {
		return false, "a run is already in progress"
	}
	if !d.coord.Trigger() {
		return false, "a run is already queued"
	}
	return true, "run queued"
}

// RecentRuns returns stored runs, newest first.
func (d *Daemon) RecentRuns(ctx context.Context, limit int) ([]ledger.RunSummary, error) {
	if d.store == nil {
		return nil, errLedgerDisabled
	}
	return d.store.RecentRuns(ctx, limit)
}

// Orphans returns orphaned orders.
func (d *Daemon) Orphans(ctx context.Context, includeResolved bool) ([]ledger.Orphan, error) {
	if d.store == nil {
		return nil, errLedgerDisabled
	}
	return d.store.ListOrphans(ctx, includeResolved)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Coordinator:  d.coord.Status(),
	}
	if d.store != nil {
		status.LedgerPath = d.store.Path()
		count, err := d.store.CountOpenOrphans(ctx)
		if err != nil {
			d.logger.Warn("failed to count open orphans", logging.Error(err))
		}
		status.OpenOrphans = count
	}
	return status
}

func (d *Daemon) apiStatus(ctx context.Context) api.DaemonStatus {
	s := d.Status(ctx)
	out := api.FromCoordinatorStatus(s.Coordinator, d.coord.Interval())
	out.Running = s.Running
	out.PID = s.PID
	out.LockFilePath = s.LockFilePath
	out.LedgerPath = s.LedgerPath
	out.OpenOrphans = s.OpenOrphans
	return out
}
