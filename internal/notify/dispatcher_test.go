package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/david/contract-broker/internal/db"
	"github.com/david/contract-broker/internal/models"
	"github.com/sebdah/goldie/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	templates map[models.TemplateType]*models.NotificationTemplate
	officers  map[int64]*models.ProcurementOfficer
	contracts map[int64]*models.Contract
	comms     []models.Communication
}

func (f *fakeStore) ActiveTemplate(_ context.Context, kind models.TemplateType) (*models.NotificationTemplate, error) {
	if t, ok := f.templates[kind]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("template %s: %w", kind, db.ErrNotFound)
}

func (f *fakeStore) AppendCommunication(_ context.Context, c *models.Communication) error {
	c.ID = int64(len(f.comms) + 1)
	f.comms = append(f.comms, *c)
	return nil
}

func (f *fakeStore) GetOfficer(_ context.Context, id int64) (*models.ProcurementOfficer, error) {
	if o, ok := f.officers[id]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("officer %d: %w", id, db.ErrNotFound)
}

func (f *fakeStore) GetContract(_ context.Context, id int64) (*models.Contract, error) {
	if c, ok := f.contracts[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("contract %d: %w", id, db.ErrNotFound)
}

func (f *fakeStore) ListOfficersByAgency(_ context.Context, agency string) ([]models.ProcurementOfficer, error) {
	var out []models.ProcurementOfficer
	for id := int64(1); id <= int64(len(f.officers)); id++ {
		o, ok := f.officers[id]
		if ok && strings.Contains(strings.ToLower(o.Agency), strings.ToLower(agency)) {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeMailer struct {
	sent    []Message
	failFor map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	if m.failFor[msg.To] {
		return errors.New("550 mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

var sentAt = time.Date(2026, 3, 2, 22, 15, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, store *fakeStore, mailer *fakeMailer) *Dispatcher {
	t.Helper()
	defaults, err := LoadDefaults()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	d := NewDispatcher(store, mailer, defaults, Sender{
		CompanyName: "KDP Global Enterprises",
		Name:        "Kendrick",
		Email:       "kendrick@kdp-global.com",
		Phone:       "(555) 123-4567",
	}, logger)
	d.now = func() time.Time { return sentAt }
	return d
}

func navyStore() *fakeStore {
	value := 1_200_000.0
	return &fakeStore{
		officers: map[int64]*models.ProcurementOfficer{
			1: {ID: 1, Name: "Dana Reyes", Agency: "Department of the Navy", Email: "dana@navy.mil"},
			2: {ID: 2, Name: "Lee Park", Agency: "Navy Supply Systems Command", Email: ""},
			3: {ID: 3, Name: "Sam Ortiz", Agency: "GSA", Email: "sam@gsa.gov"},
			4: {ID: 4, Name: "Ari Cole", Agency: "NAVY Region Southeast", Email: "bounce@navy.mil"},
		},
		contracts: map[int64]*models.Contract{
			7: {ID: 7, Title: "Bridge & Tunnel Freight Program", Agency: "Navy", Value: &value},
			8: {ID: 8, Title: "Unpriced study", Agency: "GSA"},
		},
	}
}

func TestSendTemplated_IntroductionDefaults(t *testing.T) {
	store := navyStore()
	mailer := &fakeMailer{}
	d := newTestDispatcher(t, store, mailer)

	ok, err := d.SendTemplated(context.Background(), models.TemplateIntroduction, store.officers[1], nil)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "dana@navy.mil", msg.To)
	assert.Equal(t, "Partnership Opportunity - KDP Global Contract Brokerage", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Dear Dana Reyes,")
	assert.Contains(t, msg.HTMLBody, "Phone: (555) 123-4567")
	assert.NotContains(t, msg.HTMLBody, "{{")

	require.Len(t, store.comms, 1)
	comm := store.comms[0]
	assert.Equal(t, int64(1), comm.OfficerID)
	assert.Equal(t, models.CommunicationEmail, comm.Type)
	assert.Equal(t, msg.Subject, comm.Subject)
	assert.Equal(t, "Introduction email sent", comm.Outcome)
	assert.Equal(t, sentAt, comm.Date)
	require.NotNil(t, comm.FollowUpDate)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), *comm.FollowUpDate)
}

func TestSendTemplated_FollowUpOffsets(t *testing.T) {
	for kind, want := range map[models.TemplateType]int{
		models.TemplateIntroduction: 3,
		models.TemplateFollowUp:     7,
		models.TemplateAlert:        2,
	} {
		store := navyStore()
		d := newTestDispatcher(t, store, &fakeMailer{})
		ok, err := d.SendTemplated(context.Background(), kind, store.officers[1], nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, int(store.comms[0].FollowUpDate.Sub(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)).Hours()/24), kind)
	}
}

func TestSendTemplated_PersistedTemplateWins(t *testing.T) {
	store := navyStore()
	store.templates = map[models.TemplateType]*models.NotificationTemplate{
		models.TemplateFollowUp: {Name: "Spring check-in", Subject: "Checking in, {{officer_name}}", Body: "<p>{{ agency }} / {{ unknown_var }}</p>"},
	}
	mailer := &fakeMailer{}
	d := newTestDispatcher(t, store, mailer)

	ok, err := d.SendTemplated(context.Background(), models.TemplateFollowUp, store.officers[3], map[string]string{"follow_up_type": "quarterly"})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "Checking in, Sam Ortiz", mailer.sent[0].Subject)
	assert.Equal(t, "<p>GSA / {{ unknown_var }}</p>", mailer.sent[0].HTMLBody)
	assert.Equal(t, "Follow-up email sent (quarterly) [template: Spring check-in]", store.comms[0].Outcome)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), *store.comms[0].FollowUpDate)
}

func TestSendTemplated_Failures(t *testing.T) {
	store := navyStore()
	mailer := &fakeMailer{failFor: map[string]bool{"bounce@navy.mil": true}}
	d := newTestDispatcher(t, store, mailer)
	ctx := context.Background()

	ok, err := d.SendTemplated(ctx, models.TemplateIntroduction, store.officers[2], nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoRecipient)

	ok, err = d.SendTemplated(ctx, models.TemplateIntroduction, store.officers[4], nil)
	assert.False(t, ok)
	assert.NoError(t, err)

	ok, err = d.SendTemplated(ctx, "newsletter", store.officers[1], nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnknownTemplateType)

	assert.Empty(t, store.comms)
}

func TestSendBulk(t *testing.T) {
	store := navyStore()
	mailer := &fakeMailer{failFor: map[string]bool{"bounce@navy.mil": true}}
	d := newTestDispatcher(t, store, mailer)

	res, err := d.SendBulk(context.Background(), []int64{1, 2, 3, 4, 99}, models.TemplateIntroduction)
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Sent: 2, Failed: 3}, res)
	assert.Len(t, store.comms, 2)

	_, err = d.SendBulk(context.Background(), []int64{1}, "newsletter")
	assert.ErrorIs(t, err, ErrUnknownTemplateType)
}

func TestSendBulk_RejectsAlert(t *testing.T) {
	store := navyStore()
	mailer := &fakeMailer{}
	d := newTestDispatcher(t, store, mailer)

	res, err := d.SendBulk(context.Background(), []int64{1, 3}, models.TemplateAlert)
	assert.ErrorIs(t, err, ErrUnknownTemplateType)
	assert.Equal(t, BulkResult{}, res)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, store.comms)
}

func TestSendOpportunityAlerts(t *testing.T) {
	store := navyStore()
	mailer := &fakeMailer{failFor: map[string]bool{"bounce@navy.mil": true}}
	d := newTestDispatcher(t, store, mailer)

	sent, err := d.SendOpportunityAlerts(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "New Contract Opportunity - Bridge & Tunnel Freight Program", msg.Subject)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "alert_email", []byte(msg.HTMLBody))

	assert.Equal(t, "Opportunity alert sent", store.comms[0].Outcome)
}

func TestSendOpportunityAlerts_UnpricedAndMissing(t *testing.T) {
	store := navyStore()
	mailer := &fakeMailer{}
	d := newTestDispatcher(t, store, mailer)

	sent, err := d.SendOpportunityAlerts(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Contains(t, mailer.sent[0].HTMLBody, "<strong>Estimated Value:</strong> TBD")

	_, err = d.SendOpportunityAlerts(context.Background(), 404)
	assert.ErrorIs(t, err, db.ErrNotFound)
}
