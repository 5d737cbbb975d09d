package api

import (
	"time"

	"fulfill/internal/coordinator"
	"fulfill/internal/fulfillment"
	"fulfill/internal/ledger"
	"fulfill/internal/services"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}

// FromReport converts an in-memory coordinator report.
func FromReport(r coordinator.Report) Run {
	status := ledger.RunRecord{Err: r.Err, Categories: r.Categories}.Status()
	run := Run{
		ID:         r.RunID,
		StartedAt:  formatTime(r.StartedAt),
		FinishedAt: formatTime(r.FinishedAt),
		DurationMS: r.Duration().Milliseconds(),
		Status:     status,
		Categories: make([]CategoryCounts, 0, len(r.Categories)),
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
		run.FailureKind = services.FailureKind(r.Err)
	}
	for _, c := range r.Categories {
		run.Categories = append(run.Categories, fromStats(c))
	}
	return run
}

func fromStats(s fulfillment.CategoryStats) CategoryCounts {
	out := CategoryCounts{
		Category:   string(s.Category),
		Items:      s.Items,
		Picked:     s.Picked,
		PickFailed: s.PickFailed,
		Orphaned:   s.Orphaned,
		Pending:    s.Pending,
		Shipped:    s.Shipped,
		SelfPickup: s.SelfPickup,
		Carrier:    s.Carrier,
		ShipFailed: s.ShipFailed,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}

// FromRunSummary converts a stored run.
func FromRunSummary(r ledger.RunSummary) Run {
	run := Run{
		ID:          r.ID,
		StartedAt:   formatTime(r.StartedAt),
		FinishedAt:  formatTime(r.FinishedAt),
		DurationMS:  r.Duration.Milliseconds(),
		Status:      r.Status,
		Error:       r.Error,
		FailureKind: r.FailureKind,
		Categories:  make([]CategoryCounts, 0, len(r.Categories)),
	}
	for _, c := range r.Categories {
		run.Categories = append(run.Categories, CategoryCounts{
			Category:   c.Category,
			Items:      c.Items,
			Picked:     c.Picked,
			PickFailed: c.PickFailed,
			Orphaned:   c.Orphaned,
			Pending:    c.Pending,
			Shipped:    c.Shipped,
			SelfPickup: c.SelfPickup,
			Carrier:    c.Carrier,
			ShipFailed: c.ShipFailed,
			Error:      c.Error,
		})
	}
	return run
}

// FromRunSummaries converts a slice of stored runs.
func FromRunSummaries(runs []ledger.RunSummary) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		out = append(out, FromRunSummary(r))
	}
	return out
}

// FromOrphan converts a stored orphan.
func FromOrphan(o ledger.Orphan) Orphan {
	return Orphan{
		SONo:       o.SONo,
		SN:         o.SN,
		Category:   o.Category,
		Step:       o.Step,
		Error:      o.Error,
		RunID:      o.RunID,
		FirstSeen:  formatTime(o.FirstSeen),
		LastSeen:   formatTime(o.LastSeen),
		ResolvedAt: formatTime(o.ResolvedAt),
	}
}

// FromOrphans converts a slice of stored orphans.
func FromOrphans(orphans []ledger.Orphan) []Orphan {
	out := make([]Orphan, 0, len(orphans))
	for _, o := range orphans {
		out = append(out, FromOrphan(o))
	}
	return out
}

// FromCoordinatorStatus fills the coordinator half of a daemon status.
func FromCoordinatorStatus(s coordinator.Status, interval time.Duration) DaemonStatus {
	out := DaemonStatus{
		InRun:     s.InRun,
		NextRun:   formatTime(s.NextRun),
		LastError: s.LastError,
		Interval:  interval.Minutes(),
	}
	if s.LastReport != nil {
		run := FromReport(*s.LastReport)
		out.LastRun = &run
	}
	return out
}
