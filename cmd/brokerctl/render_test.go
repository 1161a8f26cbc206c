package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/david/contract-broker/internal/followup"
	"github.com/david/contract-broker/internal/ingest"
	"github.com/david/contract-broker/internal/models"
	"github.com/david/contract-broker/internal/report"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRenderSummaries_SortedWithTotals(t *testing.T) {
	var buf bytes.Buffer
	renderSummaries(&buf, map[string]ingest.SourceSummary{
		"Unison":  {Source: "Unison", Outcome: models.RunError, Error: "timeout"},
		"SAM.gov": {Source: "SAM.gov", Outcome: models.RunSuccess, Found: 4, Added: 2},
	})
	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("SAM.gov")), bytes.Index(buf.Bytes(), []byte("Unison")))
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "TOTAL")
}

func TestRenderRuns(t *testing.T) {
	var buf bytes.Buffer
	cycle := uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000000")
	renderRuns(&buf, []models.ScrapingRun{{
		CycleID: cycle, Source: "Miami-Dade", Outcome: models.RunPartial,
		ContractsFound: 5, ContractsAdded: 1, ScrapedAt: time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
	}})
	assert.Contains(t, buf.String(), "Miami-Dade")
	assert.Contains(t, buf.String(), "3f2a9c1e")
	assert.Contains(t, buf.String(), "2026-03-01 06:00")
}

func TestRenderRemindersAndReport(t *testing.T) {
	var buf bytes.Buffer
	renderReminders(&buf, []followup.Reminder{{OfficerName: "Dana Reyes", Agency: "Navy", DaysOverdue: 3}})
	assert.Contains(t, buf.String(), "Dana Reyes")

	buf.Reset()
	renderSummary(&buf, &report.Summary{NewContracts: 4, Revenue: 1234.5, Placements: 2})
	assert.Contains(t, buf.String(), "$1,234.50")
}

func TestRenderJobs(t *testing.T) {
	var buf bytes.Buffer
	renderJobs(&buf, []string{"ingest", "weekly_report"}, map[string]time.Time{
		"ingest": time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, buf.String(), "2026-03-02 06:00")
	assert.Contains(t, buf.String(), "on demand")
}
