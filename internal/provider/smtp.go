package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends email through a plain SMTP relay. Useful with a local
// mail catcher in development.
type SMTPSender struct {
	dialer smtpDialer
	from   string
	logger *zap.Logger
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	s := &SMTPSender{from: cfg.From, logger: logger}
	if cfg.Host != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return s
}

func (s *SMTPSender) Name() string { return "smtp" }

// SendEmail dials per message. gomail has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) SendEmail(ctx context.Context, msg EmailMessage) Outcome {
	if s.dialer == nil || s.from == "" {
		return Skip(SkipMissingSMTP)
	}
	if msg.To == "" {
		return Skip(SkipNoEmail)
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return Failed(fmt.Errorf("smtp send failed: %w", err))
	}
	s.logger.Debug("email sent via smtp", zap.String("to", msg.To))
	return Sent("")
}
