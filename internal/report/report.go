// Package report builds the weekly performance summary mailed to the admin.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/david/contract-broker/internal/models"
	"github.com/david/contract-broker/internal/notify"
	"github.com/david/contract-broker/internal/revenue"
	"github.com/sirupsen/logrus"
)

const Window = 7 * 24 * time.Hour

var ErrNoRecipient = errors.New("report recipient not configured")

type Store interface {
	ContractsCreatedSince(ctx context.Context, since time.Time) ([]models.Contract, error)
	RevenueSince(ctx context.Context, since time.Time) ([]models.RevenueRecord, error)
}

// Summary covers [From, To).
type Summary struct {
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	NewContracts int               `json:"new_contracts"`
	Revenue      float64           `json:"weekly_revenue"`
	Placements   int               `json:"placements"`
	Contracts    []models.Contract `json:"-"`
}

type Reporter struct {
	store       Store
	mailer      notify.Mailer
	to          string
	companyName string
	logger      *logrus.Logger
	now         func() time.Time
}

func NewReporter(store Store, mailer notify.Mailer, to, companyName string, logger *logrus.Logger) *Reporter {
	return &Reporter{
		store:       store,
		mailer:      mailer,
		to:          to,
		companyName: companyName,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reporter) Build(ctx context.Context) (*Summary, error) {
	to := r.now()
	from := to.Add(-Window)

	contracts, err := r.store.ContractsCreatedSince(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("load new contracts: %w", err)
	}
	records, err := r.store.RevenueSince(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("load revenue: %w", err)
	}

	s := &Summary{
		From:         from,
		To:           to,
		NewContracts: len(contracts),
		Placements:   len(records),
		Contracts:    contracts,
	}
	for _, rec := range records {
		s.Revenue += rec.FeeAmount
	}
	return s, nil
}

// SendWeekly builds the summary and mails it with the workbook attached.
func (r *Reporter) SendWeekly(ctx context.Context) (*Summary, error) {
	if r.to == "" {
		return nil, ErrNoRecipient
	}
	s, err := r.Build(ctx)
	if err != nil {
		return nil, err
	}

	body, err := RenderHTML(r.companyName, s)
	if err != nil {
		return nil, err
	}
	xlsx, err := Workbook(s)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "weekly-report-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, fmt.Sprintf("weekly-report-%s.xlsx", s.To.Format("2006-01-02")))
	if err := os.WriteFile(path, xlsx, 0o600); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	msg := notify.Message{
		To:          r.to,
		Subject:     r.companyName + " Weekly Performance Report",
		HTMLBody:    body,
		Attachments: []string{path},
	}
	if err := r.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send weekly report: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"new_contracts": s.NewContracts,
		"revenue":       s.Revenue,
		"placements":    s.Placements,
	}).Info("weekly report sent")
	return s, nil
}

var bodyTmpl = template.Must(template.New("weekly").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<h2>{{ .Company }} Weekly Performance Report</h2>
<p>Week of {{ .From }} to {{ .To }}</p>
<ul>
<li>New Contracts: {{ .NewContracts }}</li>
<li>Revenue Generated: {{ .Revenue }}</li>
<li>Active Placements: {{ .Placements }}</li>
</ul>
<p>The attached workbook lists this week's new contracts.</p>
<p>This automated report is generated every Monday.</p>
</body>
</html>
`))

func RenderHTML(company string, s *Summary) (string, error) {
	var buf bytes.Buffer
	err := bodyTmpl.Execute(&buf, map[string]any{
		"Company":      company,
		"From":         s.From.Format("2006-01-02"),
		"To":           s.To.Format("2006-01-02"),
		"NewContracts": s.NewContracts,
		"Revenue":      revenue.FormatUSD(s.Revenue),
		"Placements":   s.Placements,
	})
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
