package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/practice-api/internal/config"
)

type Service interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPService delivers plain-text mail through one SMTP relay.
type SMTPService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.SMTPConfig) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPService) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.message(to, subject, body)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPService) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// NoopService is used when no SMTP relay is configured.
type NoopService struct{}

func (NoopService) Send(_ context.Context, to, subject, _ string) error {
	log.Debug().Str("to", to).Str("subject", subject).Msg("Email delivery disabled")
	return nil
}

// New picks the SMTP sender when a host is configured.
func New(cfg config.SMTPConfig) Service {
	if cfg.Enabled() {
		return NewSMTPService(cfg)
	}
	return NoopService{}
}
