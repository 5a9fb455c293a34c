package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-mail/mail/v2"
)

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPMailer sends reset messages over SMTP.
type SMTPMailer struct {
	dialer dialer
	from   string
}

// NewSMTPMailer configures TLS from the port: 465 is implicit TLS, 587
// requires STARTTLS, anything else upgrades opportunistically.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	d := mail.NewDialer(host, port, username, password)
	d.Timeout = 30 * time.Second

	switch port {
	case 465:
		d.SSL = true
		d.StartTLSPolicy = mail.NoStartTLS
	case 587:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	default:
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}

	return &SMTPMailer{dialer: d, from: from}
}

func (s *SMTPMailer) SendPasswordReset(_ context.Context, to, token string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", resetSubject)
	msg.SetBody("text/plain", resetBody(token))

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
