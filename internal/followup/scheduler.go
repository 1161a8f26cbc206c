package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/contract-broker/internal/db"
	"github.com/david/contract-broker/internal/models"
	"github.com/sirupsen/logrus"
)

// Reminder is a communication whose follow-up date has arrived.
type Reminder struct {
	CommunicationID int64     `json:"communication_id"`
	OfficerID       int64     `json:"officer_id"`
	OfficerName     string    `json:"officer_name"`
	Agency          string    `json:"agency"`
	LastContactDate time.Time `json:"last_contact_date"`
	FollowUpDueDate time.Time `json:"follow_up_due_date"`
	DaysOverdue     int       `json:"days_overdue"`
}

type Store interface {
	CommunicationsDueBy(ctx context.Context, day time.Time) ([]models.Communication, error)
	GetOfficer(ctx context.Context, id int64) (*models.ProcurementOfficer, error)
}

type Scheduler struct {
	store  Store
	logger *logrus.Logger
}

func NewScheduler(store Store, logger *logrus.Logger) *Scheduler {
	return &Scheduler{store: store, logger: logger}
}

// DueReminders lists reminders due on or before today, compared by calendar date in UTC.
// Communications whose officer no longer exists are skipped.
func (s *Scheduler) DueReminders(ctx context.Context, today time.Time) ([]Reminder, error) {
	day := Day(today)
	comms, err := s.store.CommunicationsDueBy(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load due communications: %w", err)
	}

	officers := make(map[int64]*models.ProcurementOfficer)
	reminders := make([]Reminder, 0, len(comms))
	for _, comm := range comms {
		if comm.FollowUpDate == nil {
			continue
		}
		due := Day(*comm.FollowUpDate)
		if due.After(day) {
			continue
		}

		officer, ok := officers[comm.OfficerID]
		if !ok {
			officer, err = s.store.GetOfficer(ctx, comm.OfficerID)
			if errors.Is(err, db.ErrNotFound) {
				s.logger.WithFields(logrus.Fields{"communication": comm.ID, "officer": comm.OfficerID}).
					Debug("skipping reminder for missing officer")
				officers[comm.OfficerID] = nil
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("load officer %d: %w", comm.OfficerID, err)
			}
			officers[comm.OfficerID] = officer
		}
		if officer == nil {
			continue
		}

		reminders = append(reminders, Reminder{
			CommunicationID: comm.ID,
			OfficerID:       officer.ID,
			OfficerName:     officer.Name,
			Agency:          officer.Agency,
			LastContactDate: comm.Date,
			FollowUpDueDate: due,
			DaysOverdue:     DaysBetween(due, day),
		})
	}
	return reminders, nil
}

// Day truncates t to midnight UTC of its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
