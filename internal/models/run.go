package models

import (
	"time"

	"github.com/google/uuid"
)

type RunOutcome string

const (
	RunSuccess RunOutcome = "success"
	RunPartial RunOutcome = "partial"
	RunError   RunOutcome = "error"
)

// ScrapingRun is one ledger entry per source per ingestion cycle.
type ScrapingRun struct {
	ID             int64      `json:"id"`
	CycleID        uuid.UUID  `json:"cycle_id"`
	Source         string     `json:"source"`
	ContractsFound int        `json:"contracts_found"`
	ContractsAdded int        `json:"contracts_added"`
	Outcome        RunOutcome `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ScrapedAt      time.Time  `json:"scraped_at"`
}
