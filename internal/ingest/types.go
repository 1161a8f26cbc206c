package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/david/contract-broker/internal/models"
)

// RawListing is one candidate opportunity as a source adapter produced it,
// before filtering, dedup and scoring.
type RawListing struct {
	Title           string
	Agency          string
	Classification  string
	Value           *float64
	Deadline        *time.Time
	CompetitionType string
	NoticeID        string
	Notes           string
}

// SourceAdapter fetches candidate listings from one external portal.
//
// A non-nil *PartialError alongside listings means the adapter skipped some
// work but what it returned is usable. Any other error means nothing usable.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context) ([]RawListing, error)
}

// PartialError reports failures an adapter absorbed while still producing listings.
// FailedItems counts candidate elements that were seen but could not be extracted.
type PartialError struct {
	FailedItems int
	Err         error
}

func (e *PartialError) Error() string {
	if e.FailedItems > 0 {
		return fmt.Sprintf("%d item(s) skipped: %v", e.FailedItems, e.Err)
	}
	return e.Err.Error()
}

func (e *PartialError) Unwrap() error { return e.Err }

// SourceSummary is the per-source result of one ingestion cycle.
type SourceSummary struct {
	Source  string            `json:"source"`
	Found   int               `json:"contracts_found"`
	Added   int               `json:"contracts_added"`
	Outcome models.RunOutcome `json:"status"`
	Error   string            `json:"error,omitempty"`
}
