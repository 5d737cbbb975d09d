package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fulfill/internal/config"
	"fulfill/internal/fulfillment"
	"fulfill/internal/ledger"
	"fulfill/internal/logging"
	"fulfill/internal/notifications"
)

// DefaultInterval applies when workflow.interval_minutes is unset.
const DefaultInterval = 30 * time.Minute

// Categories are processed in this order.
var Categories = []fulfillment.Category{fulfillment.CategoryMachine, fulfillment.CategoryBoard}

// Recorder persists run summaries and orphaned orders.
type Recorder interface {
	RecordRun(ctx context.Context, run ledger.RunRecord) error
	RecordOrphan(ctx context.Context, o ledger.Orphan) error
}

// Coordinator drives fulfillment runs.
type Coordinator struct {
	cfg      *config.Config
	factory  BackendFactory
	notifier notifications.Service
	recorder Recorder
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	trigger  chan struct{}

	mu         sync.RWMutex
	running    bool
	inRun      bool
	lastReport *Report
	lastErr    error
	nextRun    time.Time
}

// Option configures optional Coordinator behavior.
type Option func(*Coordinator)

// WithNotifier overrides the notifier built from configuration.
func WithNotifier(n notifications.Service) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithRecorder stores run history. Without one, runs are only logged.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithBackendFactory replaces the HTTP backends (used in tests).
func WithBackendFactory(f BackendFactory) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithInterval overrides the loop interval.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a coordinator for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "coordinator")
	interval := time.Duration(cfg.Workflow.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Coordinator{
		cfg:      cfg,
		logger:   logger,
		notifier: notifications.NewService(cfg),
		interval: interval,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
	c.factory = HTTPBackends(cfg, logger)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interval returns the delay between loop runs.
func (c *Coordinator) Interval() time.Duration { return c.interval }
