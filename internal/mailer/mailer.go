package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned by Send when no SMTP host is configured.
var ErrNotConfigured = errors.New("smtp delivery not configured")

// Message is one HTML email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers gomail messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Config holds the SMTP relay settings.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	SkipTLSVerify bool
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	sender Sender
	from   string
	logger *zap.Logger
}

// NewSMTPMailer creates a mailer dialing the relay described by cfg.
// A mailer without host is created disabled.
func NewSMTPMailer(cfg Config, logger *zap.Logger) *SMTPMailer {
	if cfg.Host == "" {
		return &SMTPMailer{from: cfg.From, logger: logger}
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec // opt-in for local relays
	}

	if cfg.SkipTLSVerify {
		logger.Warn("smtp TLS certificate verification disabled", zap.String("host", cfg.Host))
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return NewMailer(dialer, from, logger)
}

// NewMailer creates a mailer over an arbitrary sender.
func NewMailer(sender Sender, from string, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{sender: sender, from: from, logger: logger}
}

// Enabled reports whether the mailer can deliver.
func (m *SMTPMailer) Enabled() bool {
	return m.sender != nil
}

// Send delivers msg. The context is checked before dialing; gomail itself is not cancellable.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTMLBody)

	if err := m.sender.DialAndSend(gm); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}

	m.logger.Info("mail sent", zap.String("recipient", msg.To))

	return nil
}
