// Package mailer delivers diagnosis result mail over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"

	"wecar-diagnosis/internal/observability/metrics"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends HTML mail through a gomail dialer. Each message
// carries a unique Message-ID so provider-side dedup never drops a
// resend.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: empty smtp host")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: empty from address")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}, nil
}

// Send delivers one HTML message. The context deadline is honored by
// failing fast before dialing; gomail itself does not take a context.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return errors.New("mailer: empty recipient")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@wecar>", uuid.NewString()))
	msg.SetHeader("Date", time.Now().Format(time.RFC1123Z))
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		metrics.IncMail(metrics.ResultError)
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	metrics.IncMail(metrics.ResultSuccess)
	return nil
}
