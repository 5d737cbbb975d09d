package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"fulfill/internal/logging"
	"fulfill/internal/services"
)

// Loop runs RunOnce every interval until ctx is cancelled. The first run
// starts immediately. Errors and panics are logged and notified, never fatal.
func (c *Coordinator) Loop(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("coordinator loop already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.nextRun = time.Time{}
		c.mu.Unlock()
	}()

	c.logger.Info("run loop started",
		logging.String(logging.FieldEventType, "loop_started"),
		logging.Duration("interval", c.interval),
	)
	for {
		c.safeRun(ctx)
		if ctx.Err() != nil {
			break
		}

		next := c.now().Add(c.interval)
		c.setNextRun(next)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-c.trigger:
			timer.Stop()
			c.logger.Info("run triggered", logging.String(logging.FieldEventType, "run_triggered"))
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
	}
	c.logger.Info("run loop stopped", logging.String(logging.FieldEventType, "loop_stopped"))
	return nil
}

// Trigger asks a running loop to start the next run now. It reports false when
// a trigger is already pending.
func (c *Coordinator) Trigger() bool {
	select {
	case c.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Coordinator) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("run panicked: %v", r)
			logging.ErrorWithContext(c.logger, "run panicked", "run_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldImpact, "run abandoned; loop continues"),
			)
			c.setLastError(err)
			c.notifySystemError(ctx, err)
		}
	}()

	report, err := c.RunOnce(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return
	}
	logging.ErrorWithContext(c.logger, "run failed", "run_failed",
		logging.Error(err),
		logging.String(logging.FieldRunID, report.RunID),
		logging.String(logging.FieldImpact, "retried at the next interval"),
	)
	// Login failures were already notified with their own event.
	if !errors.Is(err, services.ErrAuth) {
		c.notifySystemError(services.WithRunID(ctx, report.RunID), err)
	}
}
