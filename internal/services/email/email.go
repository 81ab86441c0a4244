package email

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"infinitiflow/internal/config"
)

// Template names a transactional email.
type Template string

const (
	TemplateEmailVerification Template = "emailVerification"
	TemplatePasswordReset     Template = "passwordReset"
	TemplateWelcome           Template = "welcome"
)

var ErrUnknownTemplate = errors.New("unknown email template")

// Message is a templated email to one recipient.
type Message struct {
	To       string
	Template Template
	Data     map[string]any
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when SMTP_HOST is set and a logging sender
// otherwise. Either way delivery is bounded by EMAIL_TIMEOUT.
func NewSender(cfg config.Config, log *slog.Logger) Sender {
	var s Sender
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, emails will only be logged")
		s = NewLogSender(log)
	} else {
		s = NewSMTPSender(cfg, log)
	}
	return WithTimeout(s, cfg.EmailTimeout)
}

// WithTimeout bounds every Send on s by d. A timeout counts as a failed delivery.
func WithTimeout(s Sender, d time.Duration) Sender {
	return timeoutSender{next: s, timeout: d}
}

type timeoutSender struct {
	next    Sender
	timeout time.Duration
}

func (t timeoutSender) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- t.next.Send(ctx, msg) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender renders messages and writes them to the log instead of sending.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	subject, _, err := Render(msg)
	if err != nil {
		return err
	}
	l.log.Info("email not sent, no SMTP configured", "to", msg.To, "template", msg.Template, "subject", subject)
	return nil
}
