package email

import (
	"context"
	"fmt"
	"log/slog"

	"infinitiflow/internal/config"

	mail "github.com/go-mail/mail/v2"
)

// SMTPSender delivers rendered templates over SMTP with mandatory STARTTLS.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
	log    *slog.Logger
}

// NewSMTPSender builds a sender from the SMTP_* settings.
func NewSMTPSender(cfg config.Config, log *slog.Logger) *SMTPSender {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.Timeout = cfg.EmailTimeout
	return &SMTPSender{dialer: d, from: cfg.EmailFrom, log: log}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %s email: %w", msg.Template, err)
	}
	s.log.Info("email sent", "to", msg.To, "template", msg.Template)
	return nil
}
