package coordinator

import (
	"context"
	"errors"
	"fmt"

	"fulfill/internal/fulfillment"
	"fulfill/internal/logging"
	"fulfill/internal/notifications"
	"fulfill/internal/services"
)

func (c *Coordinator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	// Delivery must not be cut short by a run that was just cancelled.
	if err := c.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logger := logging.WithContext(ctx, c.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("notification dropped during shutdown", logging.String("event", string(event)))
			return
		}
		logging.WarnWithContext(logger, "notification delivery failed", "notification_failed",
			logging.Error(err),
			logging.String("event", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications settings and network access"),
		)
	}
}

func (c *Coordinator) notifyLoginFailure(ctx context.Context, system, username string, err error) {
	c.publish(ctx, notifications.EventLoginFailure, notifications.Payload{
		"system":   system,
		"username": username,
		"reason":   err,
	})
}

func (c *Coordinator) notifySummary(ctx context.Context, report *Report) {
	c.publish(ctx, notifications.EventRunSummary, notifications.Payload{
		"duration":   report.Duration(),
		"categories": report.Categories,
	})
}

func (c *Coordinator) notifyProcessFailure(ctx context.Context, stats fulfillment.CategoryStats) {
	reason := fmt.Sprintf("拣货失败 %d 条，发货失败 %d 条，待核对出库单 %d 条", stats.PickFailed, stats.ShipFailed, stats.Orphaned)
	if stats.Err != nil {
		reason = stats.Err.Error()
	}
	total := stats.Items + stats.Pending
	failed := stats.PickFailed + stats.ShipFailed
	c.publish(ctx, notifications.EventProcessFailure, notifications.Payload{
		"process": stats.Category.Label(),
		"error":   reason,
		"success": stats.Picked + stats.Shipped,
		"failed":  failed,
		"total":   total,
	})
}

func (c *Coordinator) notifySystemError(ctx context.Context, err error) {
	runID, _ := services.RunIDFromContext(ctx)
	details := map[string]string{"kind": services.FailureKind(err)}
	if runID != "" {
		details["run_id"] = runID
	}
	c.publish(ctx, notifications.EventSystemError, notifications.Payload{
		"error":   err,
		"context": details,
	})
}
