package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fulfill/internal/fulfillment"
	"fulfill/internal/ledger"
	"fulfill/internal/logging"
	"fulfill/internal/services"
	"fulfill/internal/session"
	"fulfill/internal/workorder"
)

var errRunInProgress = errors.New("a run is already in progress")

// RunOnce performs a single fulfillment pass. The returned error is non-nil
// only when the run aborted before processing categories; per-category
// failures are reported in the Report.
func (c *Coordinator) RunOnce(ctx context.Context) (Report, error) {
	if !c.beginRun() {
		return Report{}, services.Wrap(services.ErrValidation, "coordinator", "run", "run rejected", errRunInProgress)
	}
	defer c.endRun()

	report := Report{RunID: uuid.NewString(), StartedAt: c.now()}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("run started", logging.String(logging.FieldEventType, "run_started"))

	report.Err = c.run(ctx, logger, &report)
	report.FinishedAt = c.now()

	c.finish(ctx, logger, &report)
	return report, report.Err
}

func (c *Coordinator) run(ctx context.Context, logger *slog.Logger, report *Report) error {
	backends, err := c.factory(ctx)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "coordinator", "init sessions", "backend setup failed", err)
	}

	for _, login := range backends.Logins {
		system := login.Auth.System()
		if err := session.EnsureLogin(services.WithSystem(ctx, system), login.Auth, login.Credential, logger); err != nil {
			logging.ErrorWithContext(logger, "login failed; run aborted", "login_failed",
				logging.Error(err),
				logging.System(system),
				logging.String(logging.FieldErrorHint, "check credentials and captcha service"),
				logging.String(logging.FieldImpact, "no orders processed this run"),
			)
			c.notifyLoginFailure(ctx, system, login.Credential.Username, err)
			return err
		}
	}

	for _, category := range Categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats := c.processCategory(services.WithCategory(ctx, string(category)), logger, backends, category, report.RunID)
		report.Categories = append(report.Categories, stats)
	}
	return nil
}

func (c *Coordinator) processCategory(ctx context.Context, logger *slog.Logger, b *Backends, category fulfillment.Category, runID string) fulfillment.CategoryStats {
	logger = logger.With(logging.Category(string(category)))
	stats := fulfillment.CategoryStats{Category: category}

	items, err := c.loadItems(ctx, b.Exporter, category)
	if err != nil {
		stats.Err = err
		logging.WarnWithContext(logger, "work order retrieval failed; category skipped", "export_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the work-order session and export directory"),
			logging.String(logging.FieldImpact, "no picks or shipments for this category"),
		)
		return stats
	}
	stats.Items = len(items)

	if len(items) == 0 {
		logger.Info("no completed work orders", logging.String(logging.FieldEventType, "export_empty"))
	} else {
		results := b.Picker.PickBatch(ctx, items)
		stats.AddPicks(results, func(err error) bool { return errors.Is(err, services.ErrOrphanedOrder) })
		c.recordOrphans(ctx, logger, category, runID, results)
	}

	cands, err := b.Shipper.GetPending(ctx, c.cfg.Logistics.DaysBack)
	stats.Pending = len(cands)
	if err != nil {
		stats.Err = err
		logging.WarnWithContext(logger, "pending shipment query incomplete", "pending_query_failed",
			logging.Error(err),
			logging.Int("rows", len(cands)),
			logging.String(logging.FieldImpact, "only rows fetched before the failure are shipped"),
		)
	}
	if len(cands) > 0 {
		stats.AddShipments(b.Shipper.ShipBatch(ctx, cands, fulfillment.NameMap(items)))
	}

	logger.Info("category processed",
		logging.String(logging.FieldEventType, "category_complete"),
		logging.Int("items", stats.Items),
		logging.Int("picked", stats.Picked),
		logging.Int("pick_failed", stats.PickFailed),
		logging.Int("pending", stats.Pending),
		logging.Int("shipped", stats.Shipped),
		logging.Int("ship_failed", stats.ShipFailed),
	)
	return stats
}

func (c *Coordinator) loadItems(ctx context.Context, exporter Exporter, category fulfillment.Category) ([]fulfillment.WorkItem, error) {
	dest := c.cfg.ExportPath(string(category))
	if err := exporter.Export(ctx, category, dest); err != nil {
		return nil, err
	}
	items, err := workorder.ParseWorkItems(dest)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, workorder.System, "parse export", fmt.Sprintf("unreadable %s export", category), err)
	}
	return items, nil
}

func (c *Coordinator) recordOrphans(ctx context.Context, logger *slog.Logger, category fulfillment.Category, runID string, results []fulfillment.PickResult) {
	for _, r := range results {
		orphan, ok := services.AsOrphanedOrder(r.Err)
		if !ok {
			continue
		}
		logging.ErrorWithContext(logger, "outbound order left unconfirmed", "orphaned_order",
			logging.SN(orphan.SN),
			logging.SONo(orphan.SONo),
			logging.String("step", orphan.Step),
			logging.String(logging.FieldErrorHint, "reconcile the order on the warehouse system by hand"),
		)
		if c.recorder == nil {
			continue
		}
		now := c.now()
		rec := ledger.Orphan{
			SONo:      orphan.SONo,
			SN:        orphan.SN,
			Category:  string(category),
			Step:      orphan.Step,
			RunID:     runID,
			FirstSeen: now,
			LastSeen:  now,
		}
		if orphan.Err != nil {
			rec.Error = orphan.Err.Error()
		}
		if err := c.recorder.RecordOrphan(ctx, rec); err != nil {
			logging.WarnWithContext(logger, "orphan not recorded", "ledger_write_failed",
				logging.Error(err),
				logging.SONo(orphan.SONo),
				logging.String(logging.FieldImpact, "the order only appears in this log"),
			)
		}
	}
}

func (c *Coordinator) finish(ctx context.Context, logger *slog.Logger, report *Report) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("duration", report.Duration()),
		logging.Bool("failed", report.Failed()),
	}
	if report.Err != nil {
		attrs = append(attrs, logging.Error(report.Err), logging.String("failure_kind", services.FailureKind(report.Err)))
	}
	logger.Info("run finished", logging.Args(attrs...)...)

	if report.Err == nil {
		c.notifySummary(ctx, report)
		for _, stats := range report.Categories {
			if stats.Failed() {
				c.notifyProcessFailure(ctx, stats)
			}
		}
	}

	if c.recorder != nil {
		// Recording must survive a cancelled run context.
		recordCtx := context.WithoutCancel(ctx)
		if err := c.recorder.RecordRun(recordCtx, ledger.RunRecord{
			ID:         report.RunID,
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			Err:        report.Err,
			Categories: report.Categories,
		}); err != nil {
			logging.WarnWithContext(logger, "run not recorded", "ledger_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run missing from status history"),
			)
		}
	}

	c.mu.Lock()
	copied := *report
	c.lastReport = &copied
	c.lastErr = report.Err
	c.mu.Unlock()
}

func (c *Coordinator) beginRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inRun {
		return false
	}
	c.inRun = true
	return true
}

func (c *Coordinator) endRun() {
	c.mu.Lock()
	c.inRun = false
	c.mu.Unlock()
}
