package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/contract-broker/internal/followup"
	"github.com/david/contract-broker/internal/ingest"
	"github.com/david/contract-broker/internal/models"
	"github.com/david/contract-broker/internal/report"
	"github.com/sirupsen/logrus"
)

const (
	JobIngest       = "ingest"
	JobReminders    = "reminders"
	JobWeeklyReport = "weekly_report"
)

type Ingester interface {
	Run(ctx context.Context, sourceIDs ...string) (map[string]ingest.SourceSummary, error)
}

type ReminderFinder interface {
	DueReminders(ctx context.Context, today time.Time) ([]followup.Reminder, error)
}

type FollowUpSender interface {
	SendTemplated(ctx context.Context, kind models.TemplateType, officer *models.ProcurementOfficer, extra map[string]string) (bool, error)
}

type OfficerStore interface {
	GetOfficer(ctx context.Context, id int64) (*models.ProcurementOfficer, error)
	LatestCommunication(ctx context.Context, officerID int64) (*models.Communication, error)
}

type WeeklyReporter interface {
	SendWeekly(ctx context.Context) (*report.Summary, error)
}

// Jobs holds the collaborators behind the three scheduled jobs.
type Jobs struct {
	Ingester     Ingester
	Reminders    ReminderFinder
	Officers     OfficerStore
	FollowUps    FollowUpSender
	Reports      WeeklyReporter
	AutoFollowUp bool
	Logger       *logrus.Logger
	Now          func() time.Time
}

// ReminderResult is what one reminder pass found and did.
type ReminderResult struct {
	Reminders     []followup.Reminder `json:"reminders"`
	FollowUpsSent int                 `json:"follow_ups_sent"`
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now().UTC()
}

// Register schedules every job on r with the given cron specs.
func (j *Jobs) Register(r *Runner, ingestSpec, reminderSpec, reportSpec string) error {
	for _, e := range []struct {
		name, spec string
		fn         JobFunc
	}{
		{JobIngest, ingestSpec, j.Ingest},
		{JobReminders, reminderSpec, func(ctx context.Context) error { _, err := j.CheckReminders(ctx); return err }},
		{JobWeeklyReport, reportSpec, j.WeeklyReport},
	} {
		if err := r.Register(e.name, e.spec, e.fn); err != nil {
			return err
		}
	}
	return nil
}

func (j *Jobs) Ingest(ctx context.Context) error {
	results, err := j.Ingester.Run(ctx)
	found, added := 0, 0
	for _, s := range results {
		found += s.Found
		added += s.Added
	}
	j.Logger.WithFields(logrus.Fields{"found": found, "added": added, "sources": len(results)}).Info("scheduled ingestion finished")
	return err
}

// CheckReminders logs every due reminder. With auto follow-up on, it sends at
// most one follow_up per officer, and only when the reminder's communication is
// still that officer's latest.
func (j *Jobs) CheckReminders(ctx context.Context) (*ReminderResult, error) {
	reminders, err := j.Reminders.DueReminders(ctx, j.now())
	if err != nil {
		return nil, fmt.Errorf("find reminders: %w", err)
	}
	res := &ReminderResult{Reminders: reminders}

	handled := make(map[int64]bool)
	for _, r := range reminders {
		j.Logger.WithFields(logrus.Fields{
			"officer":      r.OfficerName,
			"agency":       r.Agency,
			"days_overdue": r.DaysOverdue,
		}).Info("follow-up reminder")

		if !j.AutoFollowUp || handled[r.OfficerID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		latest, err := j.Officers.LatestCommunication(ctx, r.OfficerID)
		if err != nil || latest.ID != r.CommunicationID {
			continue
		}
		handled[r.OfficerID] = true

		officer, err := j.Officers.GetOfficer(ctx, r.OfficerID)
		if err != nil {
			j.Logger.WithError(err).WithField("officer", r.OfficerID).Warn("auto follow-up: officer lookup failed")
			continue
		}
		sent, err := j.FollowUps.SendTemplated(ctx, models.TemplateFollowUp, officer, map[string]string{"follow_up_type": "reminder"})
		if err != nil && !errors.Is(err, context.Canceled) {
			j.Logger.WithError(err).WithField("officer", r.OfficerID).Warn("auto follow-up failed")
		}
		if sent {
			res.FollowUpsSent++
		}
	}

	j.Logger.WithFields(logrus.Fields{"reminders": len(reminders), "follow_ups_sent": res.FollowUpsSent}).Info("reminder check finished")
	return res, nil
}

func (j *Jobs) WeeklyReport(ctx context.Context) error {
	_, err := j.Reports.SendWeekly(ctx)
	return err
}
