package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DaemonStatus summarizes the running daemon.
type DaemonStatus struct {
	Running      bool    `json:"running"`
	PID          int     `json:"pid"`
	LockFilePath string  `json:"lockFilePath"`
	LedgerPath   string  `json:"ledgerPath,omitempty"`
	InRun        bool    `json:"inRun"`
	NextRun      string  `json:"nextRun,omitempty"`
	LastError    string  `json:"lastError,omitempty"`
	LastRun      *Run    `json:"lastRun,omitempty"`
	OpenOrphans  int     `json:"openOrphans"`
	Interval     float64 `json:"intervalMinutes"`
}

// Run describes one fulfillment run.
type Run struct {
	ID          string           `json:"id"`
	StartedAt   string           `json:"startedAt,omitempty"`
	FinishedAt  string           `json:"finishedAt,omitempty"`
	DurationMS  int64            `json:"durationMs"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	FailureKind string           `json:"failureKind,omitempty"`
	Categories  []CategoryCounts `json:"categories"`
}

// CategoryCounts mirrors the per-category stats of a run.
type CategoryCounts struct {
	Category   string `json:"category"`
	Items      int    `json:"items"`
	Picked     int    `json:"picked"`
	PickFailed int    `json:"pickFailed"`
	Orphaned   int    `json:"orphaned"`
	Pending    int    `json:"pending"`
	Shipped    int    `json:"shipped"`
	SelfPickup int    `json:"selfPickup"`
	Carrier    int    `json:"carrier"`
	ShipFailed int    `json:"shipFailed"`
	Error      string `json:"error,omitempty"`
}

// Orphan describes an unconfirmed outbound order.
type Orphan struct {
	SONo       string `json:"soNo"`
	SN         string `json:"sn"`
	Category   string `json:"category"`
	Step       string `json:"step"`
	Error      string `json:"error,omitempty"`
	RunID      string `json:"runId"`
	FirstSeen  string `json:"firstSeen,omitempty"`
	LastSeen   string `json:"lastSeen,omitempty"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

// RunListResponse wraps /api/runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// OrphanListResponse wraps /api/orphans.
type OrphanListResponse struct {
	Orphans []Orphan `json:"orphans"`
}

// TriggerResponse answers POST /api/run.
type TriggerResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}
