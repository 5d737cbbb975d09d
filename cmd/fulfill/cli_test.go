package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fulfill/internal/cipher"
	"fulfill/internal/coordinator"
	"fulfill/internal/daemon"
	"fulfill/internal/fulfillment"
	"fulfill/internal/logging"
	"fulfill/internal/testsupport"
)

func seedBackend(t *testing.T) *testsupport.Backend {
	t.Helper()
	b := testsupport.NewBackend(t)
	b.Update(func(b *testsupport.Backend) {
		b.Exports[fulfillment.CategoryMachine] = testsupport.EncodeGBK(t, testsupport.ExportCSV(t,
			testsupport.ExportRow{OrderNo: "W1", Customer: "张三", SN: "SN001"},
			testsupport.ExportRow{OrderNo: "W2", Customer: "李四", SN: "SN002"},
		))
		b.SKUs["SN001"] = `{"skuCode":"SKU-1","qty":1}`
		b.SKUs["SN002"] = `{"skuCode":"SKU-2","qty":1}`
		b.ConfirmFail["SN002"] = true
		b.Pending = []map[string]any{testsupport.PendingRow("SO0001", "SN001")}
	})
	return b
}

func TestRunAndOrphanCommands(t *testing.T) {
	b := seedBackend(t)
	env := setupCLITestEnv(t, testsupport.WithBackend(b))

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	requireContains(t, out, "machine")
	requireContains(t, out, "completed with failures")

	out, _, err = runCLI(t, []string{"orphans"}, env.configPath)
	if err != nil {
		t.Fatalf("orphans: %v", err)
	}
	requireContains(t, out, "SO0002")
	requireContains(t, out, "SN002")

	xlsx := filepath.Join(t.TempDir(), "orphans.xlsx")
	out, _, err = runCLI(t, []string{"orphans", "--xlsx", xlsx}, env.configPath)
	if err != nil {
		t.Fatalf("orphans --xlsx: %v", err)
	}
	requireContains(t, out, "Wrote 1 orphaned orders")
	if _, err := os.Stat(xlsx); err != nil {
		t.Fatalf("expected workbook: %v", err)
	}

	out, _, err = runCLI(t, []string{"orphans", "resolve", "SO0002"}, env.configPath)
	if err != nil {
		t.Fatalf("orphans resolve: %v", err)
	}
	requireContains(t, out, "Resolved SO0002")
	if _, _, err := runCLI(t, []string{"orphans", "resolve", "SO0002"}, env.configPath); err == nil {
		t.Fatal("expected second resolve to fail")
	}

	out, _, err = runCLI(t, []string{"orphans"}, env.configPath)
	if err != nil {
		t.Fatalf("orphans: %v", err)
	}
	requireContains(t, out, "No orphaned orders")
	out, _, err = runCLI(t, []string{"orphans", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("orphans --all: %v", err)
	}
	requireContains(t, out, "SO0002")

	out, _, err = runCLI(t, []string{"status", "--skip-checks"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "partial")
}

func TestRunAbortsOnLoginFailure(t *testing.T) {
	b := seedBackend(t)
	b.Update(func(b *testsupport.Backend) { b.WMSLoginOK = false })
	env := setupCLITestEnv(t, testsupport.WithBackend(b))

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected run to fail")
	}
	requireContains(t, out, "ERROR")
	if got := b.Calls("create_order"); got != 0 {
		t.Fatalf("create_order calls = %d, want 0", got)
	}
}

func TestDaemonLockAndTrigger(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg := env.cfg
	idle := func(context.Context) (*coordinator.Backends, error) {
		return &coordinator.Backends{
			Exporter: emptyExporter{},
			Picker:   nopPicker{},
			Shipper:  nopShipper{},
		}, nil
	}
	coord := coordinator.New(cfg, logging.NewNop(),
		coordinator.WithBackendFactory(idle),
		coordinator.WithInterval(time.Hour),
	)
	d, err := daemon.New(cfg, coord, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return !d.Status(ctx).Coordinator.NextRun.IsZero() })

	cfg.Paths.APIBind = d.APIAddress()
	writeTestConfig(t, env.configPath, cfg)

	_, _, err = runCLI(t, []string{"run"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}

	out, _, err := runCLI(t, []string{"trigger"}, env.configPath)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	requireContains(t, out, "run queued")

	out, _, err = runCLI(t, []string{"status", "--skip-checks"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid")
}

func TestLoginRejectsUnknownSystem(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"login", "erp"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown system") {
		t.Fatalf("expected unknown system error, got %v", err)
	}
}

func TestLoginStoresCookies(t *testing.T) {
	b := seedBackend(t)
	env := setupCLITestEnv(t, testsupport.WithBackend(b))

	out, _, err := runCLI(t, []string{"login", "logistics"}, env.configPath)
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	requireContains(t, out, "logged in as log-user")
	if _, err := os.Stat(env.cfg.CookiePath("logistics")); err != nil {
		t.Fatalf("expected cookie file: %v", err)
	}
}

func TestEncryptUsesDateKey(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"encrypt", "--date", "2024-03-05", "s3cret"}, env.configPath)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	enc := cipher.NewEncryptor(env.cfg.Cipher.KeyPrefix, env.cfg.Cipher.KeySuffix, env.cfg.Cipher.IV)
	enc.Now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local) }
	want, err := enc.EncryptPassword("s3cret")
	if err != nil {
		t.Fatalf("EncryptPassword: %v", err)
	}
	if strings.TrimSpace(out) != want {
		t.Fatalf("encrypt output = %q, want %q", out, want)
	}

	if _, _, err := runCLI(t, []string{"encrypt", "--date", "05/03/2024", "x"}, env.configPath); err == nil {
		t.Fatal("expected bad date error")
	}
}

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "disabled")
}

type emptyExporter struct{}

func (emptyExporter) Export(_ context.Context, _ fulfillment.Category, dest string) error {
	return os.WriteFile(dest, nil, 0o644)
}

type nopPicker struct{}

func (nopPicker) PickBatch(context.Context, []fulfillment.WorkItem) []fulfillment.PickResult {
	return nil
}

type nopShipper struct{}

func (nopShipper) GetPending(context.Context, int) ([]fulfillment.ShipmentCandidate, error) {
	return nil, nil
}

func (nopShipper) ShipBatch(context.Context, []fulfillment.ShipmentCandidate, map[string]string) []fulfillment.ShipResult {
	return nil
}

func TestLogsCommandFilters(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "INFO picked sn=SN001\nINFO picked sn=SN002\nWARN confirm failed sn=SN002\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--grep", "SN002"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "SN001") || strings.Count(out, "SN002") != 2 {
		t.Fatalf("unexpected logs output: %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) != "WARN confirm failed sn=SN002" {
		t.Fatalf("unexpected logs output: %q", out)
	}
}
