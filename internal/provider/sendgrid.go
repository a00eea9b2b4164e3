package provider

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	client    sendgridAPI
	fromEmail string
	fromName  string
	logger    *zap.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

func NewSendGridSender(cfg SendGridConfig, logger *zap.Logger) *SendGridSender {
	s := &SendGridSender{
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
	if cfg.APIKey != "" {
		s.client = sendgrid.NewSendClient(cfg.APIKey)
	}
	return s
}

func (s *SendGridSender) Name() string { return "sendgrid" }

func (s *SendGridSender) SendEmail(ctx context.Context, msg EmailMessage) Outcome {
	if s.client == nil {
		return Skip(SkipMissingSendGridKey)
	}
	if s.fromEmail == "" {
		return Skip(SkipMissingSender)
	}
	if msg.To == "" {
		return Skip(SkipNoEmail)
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return Failed(fmt.Errorf("sendgrid send failed: %w", err))
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("sendgrid rejected email",
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body),
		)
		return Failedf("sendgrid: status %d", resp.StatusCode)
	}

	var id string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		id = ids[0]
	}
	return Sent(id)
}
