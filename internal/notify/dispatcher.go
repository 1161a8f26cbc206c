package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/david/contract-broker/internal/db"
	"github.com/david/contract-broker/internal/followup"
	"github.com/david/contract-broker/internal/models"
	"github.com/david/contract-broker/internal/revenue"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownTemplateType = errors.New("unknown template type")
	ErrNoRecipient         = errors.New("officer has no email address")
)

type Store interface {
	ActiveTemplate(ctx context.Context, kind models.TemplateType) (*models.NotificationTemplate, error)
	AppendCommunication(ctx context.Context, c *models.Communication) error
	GetOfficer(ctx context.Context, id int64) (*models.ProcurementOfficer, error)
	GetContract(ctx context.Context, id int64) (*models.Contract, error)
	ListOfficersByAgency(ctx context.Context, agency string) ([]models.ProcurementOfficer, error)
}

// Sender is the identity every template can reference.
type Sender struct {
	CompanyName string
	Name        string
	Email       string
	Phone       string
}

type Dispatcher struct {
	store    Store
	mailer   Mailer
	defaults Defaults
	sender   Sender
	logger   *logrus.Logger
	now      func() time.Time
}

func NewDispatcher(store Store, mailer Mailer, defaults Defaults, sender Sender, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		mailer:   mailer,
		defaults: defaults,
		sender:   sender,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type BulkResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (d *Dispatcher) baseVars(officer *models.ProcurementOfficer) map[string]string {
	return map[string]string{
		"officer_name":   officer.Name,
		"agency":         officer.Agency,
		"company_name":   d.sender.CompanyName,
		"sender_name":    d.sender.Name,
		"sender_email":   d.sender.Email,
		"phone":          d.sender.Phone,
		"follow_up_type": "general",
	}
}

// resolve picks the newest active persisted template, falling back to the built-in one.
func (d *Dispatcher) resolve(ctx context.Context, kind models.TemplateType, def DefaultTemplate) (subject, body, label string, err error) {
	tmpl, err := d.store.ActiveTemplate(ctx, kind)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return def.Subject, def.Body, "", nil
	case err != nil:
		return "", "", "", err
	}
	return tmpl.Subject, tmpl.Body, tmpl.Name, nil
}

// SendTemplated renders and sends one template to one officer, then logs the
// communication with its follow-up date. A delivery failure returns (false, nil)
// and logs nothing; a missing address returns ErrNoRecipient.
func (d *Dispatcher) SendTemplated(ctx context.Context, kind models.TemplateType, officer *models.ProcurementOfficer, extra map[string]string) (bool, error) {
	def, ok := d.defaults[kind]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTemplateType, kind)
	}
	if officer == nil || strings.TrimSpace(officer.Email) == "" {
		return false, ErrNoRecipient
	}

	subject, body, label, err := d.resolve(ctx, kind, def)
	if err != nil {
		return false, fmt.Errorf("resolve %s template: %w", kind, err)
	}

	vars := d.baseVars(officer)
	for k, v := range extra {
		vars[k] = v
	}

	msg := Message{
		To:       strings.TrimSpace(officer.Email),
		Subject:  Render(subject, vars),
		HTMLBody: RenderHTML(body, vars),
	}

	log := d.logger.WithFields(logrus.Fields{"officer": officer.ID, "template": kind})
	if err := d.mailer.Send(ctx, msg); err != nil {
		log.WithError(err).Warn("email delivery failed")
		return false, nil
	}

	sentAt := d.now()
	followUp := followup.Day(sentAt).AddDate(0, 0, def.FollowUpDays)
	outcome := Render(def.Outcome, vars)
	if label != "" {
		outcome += " [template: " + label + "]"
	}

	comm := &models.Communication{
		OfficerID:    officer.ID,
		Date:         sentAt,
		Type:         models.CommunicationEmail,
		Subject:      msg.Subject,
		Outcome:      outcome,
		FollowUpDate: &followUp,
	}
	if err := d.store.AppendCommunication(ctx, comm); err != nil {
		return true, fmt.Errorf("record communication: %w", err)
	}
	log.WithField("follow_up", followUp.Format("2006-01-02")).Info("outreach sent")
	return true, nil
}

// SendBulk sends an introduction or follow-up template to each officer id.
// Unknown ids, officers without an address and delivery failures all count as
// failed. Alerts need a contract and go through SendOpportunityAlerts.
func (d *Dispatcher) SendBulk(ctx context.Context, officerIDs []int64, kind models.TemplateType) (BulkResult, error) {
	if _, ok := d.defaults[kind]; !ok || kind == models.TemplateAlert {
		return BulkResult{}, fmt.Errorf("%w: %q", ErrUnknownTemplateType, kind)
	}

	var res BulkResult
	for _, id := range officerIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		officer, err := d.store.GetOfficer(ctx, id)
		if err != nil {
			d.logger.WithError(err).WithField("officer", id).Warn("bulk send: officer lookup failed")
			res.Failed++
			continue
		}
		sent, err := d.SendTemplated(ctx, kind, officer, nil)
		if err != nil {
			d.logger.WithError(err).WithField("officer", id).Warn("bulk send failed")
		}
		if sent {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

// SendOpportunityAlerts mails the alert template to every officer whose agency
// contains the contract's agency. Officers without an address are skipped.
func (d *Dispatcher) SendOpportunityAlerts(ctx context.Context, contractID int64) (int, error) {
	contract, err := d.store.GetContract(ctx, contractID)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(contract.Agency) == "" {
		return 0, nil
	}
	officers, err := d.store.ListOfficersByAgency(ctx, contract.Agency)
	if err != nil {
		return 0, fmt.Errorf("find officers for %q: %w", contract.Agency, err)
	}

	vars := map[string]string{
		"contract_title": contract.Title,
		"contract_value": revenue.FormatValue(contract.Value),
	}

	sent := 0
	for i := range officers {
		officer := &officers[i]
		ok, err := d.SendTemplated(ctx, models.TemplateAlert, officer, vars)
		if errors.Is(err, ErrNoRecipient) {
			continue
		}
		if err != nil {
			d.logger.WithError(err).WithField("officer", officer.ID).Warn("alert failed")
		}
		if ok {
			sent++
		}
	}
	d.logger.WithFields(logrus.Fields{"contract": contractID, "sent": sent}).Info("opportunity alerts dispatched")
	return sent, nil
}
