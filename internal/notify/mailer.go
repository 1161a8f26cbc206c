package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// Message is one outbound HTML email.
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []string // file paths; missing files are skipped
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer delivers through an authenticated SMTP relay with mandatory STARTTLS.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *logrus.Logger
}

func NewSMTPMailer(cfg SMTPConfig, logger *logrus.Logger) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) buildMessage(msg Message) (*mail.Msg, error) {
	email := mail.NewMsg()
	if err := email.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := email.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	email.Subject(msg.Subject)
	email.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	for _, path := range msg.Attachments {
		if _, err := os.Stat(path); err != nil {
			m.logger.WithField("path", path).Warn("attachment not found, skipping")
			continue
		}
		email.AttachFile(path)
	}
	return email, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	email, err := m.buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.cfg.Timeout),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			m.logger.WithError(cerr).Debug("smtp close failed")
		}
	}()

	if err := client.Send(email); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	m.logger.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info("email sent")
	return nil
}
