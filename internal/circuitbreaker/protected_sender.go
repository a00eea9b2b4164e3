package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/provider"
)

// ProtectedEmail wraps an EmailSender with a Breaker.
type ProtectedEmail struct {
	sender  provider.EmailSender
	breaker *Breaker
	logger  *zap.Logger
}

// NewProtectedEmail wraps sender with a breaker named after it.
func NewProtectedEmail(sender provider.EmailSender, cfg Config, logger *zap.Logger) *ProtectedEmail {
	if cfg.Name == "" {
		cfg.Name = sender.Name()
	}
	return &ProtectedEmail{
		sender:  sender,
		breaker: New(cfg, logger),
		logger:  logger,
	}
}

func (p *ProtectedEmail) Name() string { return p.sender.Name() }

// SendEmail fails fast with ErrCircuitOpen while the breaker is open.
func (p *ProtectedEmail) SendEmail(ctx context.Context, msg provider.EmailMessage) provider.Outcome {
	out, ok := p.breaker.Do(func() provider.Outcome {
		return p.sender.SendEmail(ctx, msg)
	})
	if !ok {
		p.logger.Warn("circuit breaker rejected email",
			zap.String("breaker", p.breaker.Name()),
			zap.String("state", p.breaker.State().String()),
		)
		return provider.Failed(fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.Name()))
	}
	return out
}

// Breaker returns the underlying breaker for monitoring.
func (p *ProtectedEmail) Breaker() *Breaker {
	return p.breaker
}

// ProtectedSMS wraps an SMSSender with a Breaker.
type ProtectedSMS struct {
	sender  provider.SMSSender
	breaker *Breaker
	logger  *zap.Logger
}

func NewProtectedSMS(sender provider.SMSSender, cfg Config, logger *zap.Logger) *ProtectedSMS {
	if cfg.Name == "" {
		cfg.Name = sender.Name()
	}
	return &ProtectedSMS{
		sender:  sender,
		breaker: New(cfg, logger),
		logger:  logger,
	}
}

func (p *ProtectedSMS) Name() string { return p.sender.Name() }

func (p *ProtectedSMS) SendSMS(ctx context.Context, msg provider.SMSMessage) provider.Outcome {
	out, ok := p.breaker.Do(func() provider.Outcome {
		return p.sender.SendSMS(ctx, msg)
	})
	if !ok {
		p.logger.Warn("circuit breaker rejected sms",
			zap.String("breaker", p.breaker.Name()),
			zap.String("state", p.breaker.State().String()),
		)
		return provider.Failed(fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.Name()))
	}
	return out
}

func (p *ProtectedSMS) Breaker() *Breaker {
	return p.breaker
}
