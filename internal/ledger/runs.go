package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fulfill/internal/services"
)

// RecordRun stores a run and its category stats. Recording the same run ID
// again replaces the earlier row.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) error {
	if run.ID == "" {
		return services.Wrap(services.ErrValidation, "ledger", "record run", "run id is empty", nil)
	}
	errText := ""
	if run.Err != nil {
		errText = run.Err.Error()
	}
	duration := run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO runs (id, started_at, finished_at, duration_ms, status, error_message, failure_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				started_at = excluded.started_at,
				finished_at = excluded.finished_at,
				duration_ms = excluded.duration_ms,
				status = excluded.status,
				error_message = excluded.error_message,
				failure_kind = excluded.failure_kind`),
			run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), duration,
			run.Status(), errText, services.FailureKind(run.Err),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM run_categories WHERE run_id = ?`), run.ID); err != nil {
			return fmt.Errorf("clear run categories: %w", err)
		}
		for _, c := range run.Categories {
			catErr := ""
			if c.Err != nil {
				catErr = c.Err.Error()
			}
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO run_categories
				(run_id, category, items, picked, pick_failed, orphaned, pending, shipped, self_pickup, carrier, ship_failed, error_message)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				run.ID, string(c.Category), c.Items, c.Picked, c.PickFailed, c.Orphaned,
				c.Pending, c.Shipped, c.SelfPickup, c.Carrier, c.ShipFailed, catErr,
			); err != nil {
				return fmt.Errorf("insert run category %s: %w", c.Category, err)
			}
		}
		return nil
	})
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, started_at, finished_at, duration_ms, status, error_message, failure_kind
		FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			run               RunSummary
			started, finished string
			durationMS        int64
		)
		if err := rows.Scan(&run.ID, &started, &finished, &durationMS, &run.Status, &run.Error, &run.FailureKind); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		run.Duration = msDuration(durationMS)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}

	for i := range runs {
		cats, err := s.runCategories(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Categories = cats
	}
	return runs, nil
}

// LastRun returns the newest run, or false when none is recorded.
func (s *Store) LastRun(ctx context.Context) (RunSummary, bool, error) {
	runs, err := s.RecentRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return RunSummary{}, false, err
	}
	return runs[0], true, nil
}

func (s *Store) runCategories(ctx context.Context, runID string) ([]CategoryRow, error) {
	// machine sorts ahead of board in descending order
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT category, items, picked, pick_failed, orphaned, pending, shipped, self_pickup, carrier, ship_failed, error_message
		FROM run_categories WHERE run_id = ? ORDER BY category DESC`), runID)
	if err != nil {
		return nil, fmt.Errorf("query run categories: %w", err)
	}
	defer rows.Close()
	var cats []CategoryRow
	for rows.Next() {
		var c CategoryRow
		if err := rows.Scan(&c.Category, &c.Items, &c.Picked, &c.PickFailed, &c.Orphaned, &c.Pending,
			&c.Shipped, &c.SelfPickup, &c.Carrier, &c.ShipFailed, &c.Error); err != nil {
			return nil, fmt.Errorf("scan run category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
