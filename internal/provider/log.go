package provider

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogSender logs instead of delivering (for development).
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) SendEmail(ctx context.Context, msg EmailMessage) Outcome {
	if msg.To == "" {
		return Skip(SkipNoEmail)
	}
	s.logger.Info("email (development mode)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return Sent(uuid.NewString())
}

func (s *LogSender) SendSMS(ctx context.Context, msg SMSMessage) Outcome {
	if msg.To == "" {
		return Skip(SkipNoPhone)
	}
	phone, ok := NormalizePhone(msg.To)
	if !ok {
		return Failed(ErrInvalidPhone)
	}
	s.logger.Info("sms (development mode)",
		zap.String("to", phone),
		zap.String("body", msg.Body),
	)
	return Sent(uuid.NewString())
}
