// Package fulfillment holds the records that flow between the work-order
// export, the picking saga, and shipment dispatch.
package fulfillment

import (
	"strings"
	"time"
)

// Category is a product category handled as one unit of a run.
type Category string

const (
	CategoryMachine Category = "machine"
	CategoryBoard   Category = "board"
)

// Categories lists the categories in processing order.
var Categories = []Category{CategoryMachine, CategoryBoard}

// Label returns the operator-facing Chinese label.
func (c Category) Label() string {
	switch c {
	case CategoryBoard:
		return "用户板"
	default:
		return "整机"
	}
}

// ParseCategory accepts the English names and the Chinese labels.
func ParseCategory(value string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "machine", "整机":
		return CategoryMachine, true
	case "board", "用户板":
		return CategoryBoard, true
	}
	return "", false
}

// StatusCompleted marks a work item whose service order is finished.
const StatusCompleted = "completed"

// WorkItem is one serial number exported from the work-order tracker.
type WorkItem struct {
	SN           string
	Category     Category
	OrderNo      string
	CustomerName string
	Status       string
}

// PickResult is the outcome of the picking saga for one WorkItem. Success is
// true iff Message is MessagePicked. SONo is set once the outbound order was
// created, even if a later step failed.
type PickResult struct {
	SN          string
	SONo        string
	Success     bool
	Message     string
	CompletedAt time.Time
	Err         error
}

// Pick messages.
const (
	MessagePicked            = "picked"
	MessageQueryFailed       = "query failed"
	MessageCreateFailed      = "create order failed"
	MessagePickDetailFailed  = "query pick detail failed"
	MessageConfirmPickFailed = "confirm pick failed"
)

// ShipmentCandidate is one row of the pending-shipment query. Row keeps every
// field the backend returned so it can be echoed back on dispatch.
type ShipmentCandidate struct {
	SONo  string
	InvSN string
	Row   map[string]any
}

// ShipResult is the outcome of dispatching one ShipmentCandidate.
type ShipResult struct {
	SN           string
	SONo         string
	CustomerName string
	SelfPickup   bool
	Success      bool
	Message      string
	ShippedAt    time.Time
	Err          error
}

// CategoryStats aggregates one category of one run.
type CategoryStats struct {
	Category   Category
	Items      int
	Picked     int
	PickFailed int
	Orphaned   int
	Pending    int
	Shipped    int
	SelfPickup int
	Carrier    int
	ShipFailed int
	Err        error
}

// Failed reports whether anything in the category did not go through.
func (s CategoryStats) Failed() bool {
	return s.Err != nil || s.PickFailed > 0 || s.ShipFailed > 0
}

// AddPicks folds pick results into the stats.
func (s *CategoryStats) AddPicks(results []PickResult, isOrphan func(error) bool) {
	for _, r := range results {
		if r.Success {
			s.Picked++
			continue
		}
		s.PickFailed++
		if isOrphan != nil && isOrphan(r.Err) {
			s.Orphaned++
		}
	}
}

// AddShipments folds ship results into the stats.
func (s *CategoryStats) AddShipments(results []ShipResult) {
	for _, r := range results {
		if !r.Success {
			s.ShipFailed++
			continue
		}
		s.Shipped++
		if r.SelfPickup {
			s.SelfPickup++
		} else {
			s.Carrier++
		}
	}
}

// NameMap maps each SN to the first non-empty customer name among items.
func NameMap(items []WorkItem) map[string]string {
	names := make(map[string]string, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.CustomerName)
		if item.SN == "" || name == "" {
			continue
		}
		if _, ok := names[item.SN]; ok {
			continue
		}
		names[item.SN] = name
	}
	return names
}
