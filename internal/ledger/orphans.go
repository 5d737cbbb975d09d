package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fulfill/internal/services"
)

// RecordOrphan upserts an orphaned order. A repeat sighting refreshes
// last_seen and the error but keeps first_seen; a resolved order that shows
// up again is reopened.
func (s *Store) RecordOrphan(ctx context.Context, o Orphan) error {
	soNo := strings.TrimSpace(o.SONo)
	if soNo == "" {
		return services.Wrap(services.ErrValidation, "ledger", "record orphan", "order number is empty", nil)
	}
	seen := o.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}
	first := o.FirstSeen
	if first.IsZero() {
		first = seen
	}
	_, err := s.exec(ctx, `INSERT INTO orphans (so_no, sn, category, step, error_message, run_id, first_seen, last_seen, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT (so_no) DO UPDATE SET
			sn = excluded.sn,
			category = excluded.category,
			step = excluded.step,
			error_message = excluded.error_message,
			run_id = excluded.run_id,
			last_seen = excluded.last_seen,
			resolved_at = NULL`,
		soNo, o.SN, o.Category, o.Step, o.Error, o.RunID, formatTime(first), formatTime(seen),
	)
	if err != nil {
		return fmt.Errorf("record orphan %s: %w", soNo, err)
	}
	return nil
}

// MarkResolved flags an orphan as reconciled. It reports false when no open
// orphan has that order number.
func (s *Store) MarkResolved(ctx context.Context, soNo string, at time.Time) (bool, error) {
	if at.IsZero() {
		at = time.Now()
	}
	res, err := s.exec(ctx, `UPDATE orphans SET resolved_at = ? WHERE so_no = ? AND resolved_at IS NULL`,
		formatTime(at), strings.TrimSpace(soNo))
	if err != nil {
		return false, fmt.Errorf("resolve orphan %s: %w", soNo, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve orphan %s: %w", soNo, err)
	}
	return n > 0, nil
}

// ListOrphans returns orphans ordered by first sighting. Resolved orphans are
// included only when includeResolved is set.
func (s *Store) ListOrphans(ctx context.Context, includeResolved bool) ([]Orphan, error) {
	query := `SELECT so_no, sn, category, step, error_message, run_id, first_seen, last_seen, resolved_at FROM orphans`
	if !includeResolved {
		query += ` WHERE resolved_at IS NULL`
	}
	query += ` ORDER BY first_seen, so_no`

	rows, err := s.db.QueryContext(ctx, s.q(query))
	if err != nil {
		return nil, fmt.Errorf("query orphans: %w", err)
	}
	defer rows.Close()

	var out []Orphan
	for rows.Next() {
		var (
			o           Orphan
			first, last string
			resolved    sql.NullString
		)
		if err := rows.Scan(&o.SONo, &o.SN, &o.Category, &o.Step, &o.Error, &o.RunID, &first, &last, &resolved); err != nil {
			return nil, fmt.Errorf("scan orphan: %w", err)
		}
		o.FirstSeen = parseTime(first)
		o.LastSeen = parseTime(last)
		if resolved.Valid {
			o.ResolvedAt = parseTime(resolved.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOpenOrphans returns the number of unresolved orphans.
func (s *Store) CountOpenOrphans(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orphans WHERE resolved_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orphans: %w", err)
	}
	return n, nil
}
