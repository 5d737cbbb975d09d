package ledger

import (
	"time"

	"fulfill/internal/fulfillment"
)

// Run statuses.
const (
	RunStatusOK      = "ok"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// RunRecord is what the coordinator hands to the ledger after a run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
	Categories []fulfillment.CategoryStats
}

// Status derives the stored status: failed when the run aborted, partial when
// any category recorded failures, ok otherwise.
func (r RunRecord) Status() string {
	if r.Err != nil {
		return RunStatusFailed
	}
	for _, c := range r.Categories {
		if c.Failed() {
			return RunStatusPartial
		}
	}
	return RunStatusOK
}

// CategoryRow is one stored category of a run.
type CategoryRow struct {
	Category   string
	Items      int
	Picked     int
	PickFailed int
	Orphaned   int
	Pending    int
	Shipped    int
	SelfPickup int
	Carrier    int
	ShipFailed int
	Error      string
}

// RunSummary is a stored run with its categories.
type RunSummary struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Status      string
	Error       string
	FailureKind string
	Categories  []CategoryRow
}

// Totals sums the category counts.
func (r RunSummary) Totals() CategoryRow {
	total := CategoryRow{Category: "total"}
	for _, c := range r.Categories {
		total.Items += c.Items
		total.Picked += c.Picked
		total.PickFailed += c.PickFailed
		total.Orphaned += c.Orphaned
		total.Pending += c.Pending
		total.Shipped += c.Shipped
		total.SelfPickup += c.SelfPickup
		total.Carrier += c.Carrier
		total.ShipFailed += c.ShipFailed
	}
	return total
}

// Orphan is an outbound order created on the warehouse system that was never
// confirmed.
type Orphan struct {
	SONo       string
	SN         string
	Category   string
	Step       string
	Error      string
	RunID      string
	FirstSeen  time.Time
	LastSeen   time.Time
	ResolvedAt time.Time
}

// Resolved reports whether an operator marked the order reconciled.
func (o Orphan) Resolved() bool { return !o.ResolvedAt.IsZero() }
