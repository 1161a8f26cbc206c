package main

import (
	"io"
	"sort"
	"time"

	"github.com/david/contract-broker/internal/followup"
	"github.com/david/contract-broker/internal/ingest"
	"github.com/david/contract-broker/internal/models"
	"github.com/david/contract-broker/internal/report"
	"github.com/david/contract-broker/internal/revenue"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderSummaries(w io.Writer, results map[string]ingest.SourceSummary) {
	names := make([]string, 0, len(results))
	for n := range results {
		names = append(names, n)
	}
	sort.Strings(names)

	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Status", "Found", "Added", "Error"})
	found, added := 0, 0
	for _, n := range names {
		s := results[n]
		t.AppendRow(table.Row{s.Source, s.Outcome, s.Found, s.Added, s.Error})
		found += s.Found
		added += s.Added
	}
	t.AppendFooter(table.Row{"Total", "", found, added, ""})
	t.Render()
}

func renderRuns(w io.Writer, runs []models.ScrapingRun) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Status", "Found", "Added", "Cycle", "Scraped At", "Error"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.Source, r.Outcome, r.ContractsFound, r.ContractsAdded,
			r.CycleID.String()[:8], r.ScrapedAt.UTC().Format("2006-01-02 15:04"), r.ErrorMessage,
		})
	}
	t.Render()
}

func renderReminders(w io.Writer, reminders []followup.Reminder) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Officer", "Agency", "Last Contact", "Due", "Days Overdue"})
	for _, r := range reminders {
		t.AppendRow(table.Row{
			r.OfficerName, r.Agency,
			r.LastContactDate.Format("2006-01-02"), r.FollowUpDueDate.Format("2006-01-02"), r.DaysOverdue,
		})
	}
	t.Render()
}

func renderSummary(w io.Writer, s *report.Summary) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Week", s.From.Format("2006-01-02") + " to " + s.To.Format("2006-01-02")},
		{"New Contracts", s.NewContracts},
		{"Revenue Generated", revenue.FormatUSD(s.Revenue)},
		{"Active Placements", s.Placements},
	})
	t.Render()
}

func renderJobs(w io.Writer, names []string, next map[string]time.Time) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Job", "Next Run (UTC)"})
	for _, n := range names {
		when := "on demand"
		if at, ok := next[n]; ok {
			when = at.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{n, when})
	}
	t.Render()
}
