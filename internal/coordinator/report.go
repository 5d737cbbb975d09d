package coordinator

import (
	"time"

	"fulfill/internal/fulfillment"
)

// Report summarizes one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Categories []fulfillment.CategoryStats
	Err        error
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the run aborted or any category recorded failures.
func (r Report) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, c := range r.Categories {
		if c.Failed() {
			return true
		}
	}
	return false
}

// Totals sums the category counts. Err is left nil.
func (r Report) Totals() fulfillment.CategoryStats {
	var t fulfillment.CategoryStats
	for _, c := range r.Categories {
		t.Items += c.Items
		t.Picked += c.Picked
		t.PickFailed += c.PickFailed
		t.Orphaned += c.Orphaned
		t.Pending += c.Pending
		t.Shipped += c.Shipped
		t.SelfPickup += c.SelfPickup
		t.Carrier += c.Carrier
		t.ShipFailed += c.ShipFailed
	}
	return t
}

// Stats returns the stats of category, if it ran.
func (r Report) Stats(category fulfillment.Category) (fulfillment.CategoryStats, bool) {
	for _, c := range r.Categories {
		if c.Category == category {
			return c, true
		}
	}
	return fulfillment.CategoryStats{}, false
}
