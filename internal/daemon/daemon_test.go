package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfill/internal/config"
	"fulfill/internal/coordinator"
	"fulfill/internal/daemon"
	"fulfill/internal/logging"
	"fulfill/internal/notifications"
	"fulfill/internal/testsupport"
)

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

func newTestCoordinator(cfg *config.Config) *coordinator.Coordinator {
	failing := func(context.Context) (*coordinator.Backends, error) {
		return nil, errors.New("backends unavailable in tests")
	}
	return coordinator.New(cfg, logging.NewNop(),
		coordinator.WithBackendFactory(failing),
		coordinator.WithNotifier(nopNotifier{}),
		coordinator.WithInterval(time.Hour),
	)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	d, err := daemon.New(cfg, newTestCoordinator(cfg), nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected status: %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if accepted, _ := d.TriggerRun(); accepted {
		t.Fatal("trigger should be rejected while stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	first, err := daemon.New(cfg, newTestCoordinator(cfg), nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second, err := daemon.New(cfg, newTestCoordinator(cfg), nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if _, err := daemon.AcquireLock(cfg); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("AcquireLock should fail while the daemon runs, got %v", err)
	}

	first.Stop()
	lock, err := daemon.AcquireLock(cfg)
	if err != nil {
		t.Fatalf("AcquireLock after stop: %v", err)
	}
	_ = lock.Unlock()
}

func TestDaemonStopWaitsForLoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	d, err := daemon.New(cfg, newTestCoordinator(cfg), nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := d.Done()

	deadline := time.Now().Add(2 * time.Second)
	for d.Status(context.Background()).Coordinator.LastError == "" {
		if time.Now().After(deadline) {
			t.Fatal("first run did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()
	select {
	case <-done:
	default:
		t.Fatal("loop should have exited after Stop")
	}
}
