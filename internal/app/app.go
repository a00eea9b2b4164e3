// Package app wires configuration into a runnable engine. Every binary
// under cmd/ builds its dependencies here.
package app

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/audit"
	"github.com/lalithlochan/remindr/internal/circuitbreaker"
	"github.com/lalithlochan/remindr/internal/config"
	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/delivery"
	"github.com/lalithlochan/remindr/internal/engine"
	"github.com/lalithlochan/remindr/internal/notify"
	"github.com/lalithlochan/remindr/internal/outbox"
	"github.com/lalithlochan/remindr/internal/provider"
	"github.com/lalithlochan/remindr/internal/redis"
	"github.com/lalithlochan/remindr/internal/reminder"
	"github.com/lalithlochan/remindr/internal/sns"
	"github.com/lalithlochan/remindr/internal/sqs"
	"github.com/lalithlochan/remindr/internal/timeutil"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *db.DB
	Repo        *db.Repository
	Redis       *redis.Client // nil when disabled or unreachable
	RateLimiter *redis.RateLimiter
	Engine      *engine.Engine
}

// New connects to Postgres and, when enabled, Redis, then assembles the engine.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, service string) (*App, error) {
	database, err := db.New(ctx, db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		ApplicationName: service,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     database,
		Repo:   db.NewRepository(database, logger),
	}

	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, redis.Config{
			URL:      cfg.Redis.URL,
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, send dedup and rate limiting disabled", zap.Error(err))
		} else {
			a.Redis = client
			a.RateLimiter = redis.NewRateLimiter(client, logger, redis.RateLimitConfig{
				Limit:  cfg.API.RateLimitPerMinute,
				Window: time.Minute,
			})
		}
	}

	eng, err := a.buildEngine(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Engine = eng
	return a, nil
}

func (a *App) buildEngine(ctx context.Context) (*engine.Engine, error) {
	cfg := a.Config

	email, err := NewEmailSender(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	sms, err := NewSMSSender(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}

	var mirror audit.Mirror
	if cfg.AWS.AuditTopicARN != "" {
		pub, err := newAuditPublisher(ctx, cfg)
		if err != nil {
			a.Logger.Warn("audit topic unavailable, failures will not be mirrored", zap.Error(err))
		} else {
			mirror = pub
		}
	}
	recorder := audit.New(a.Repo, mirror, a.Logger)

	opts := notify.Options{
		Timeout:  cfg.Engine.ProviderTimeout,
		Location: timeutil.LoadLocation(cfg.Engine.DefaultTimezone),
	}
	if a.Redis != nil {
		opts.Dedup = redis.NewSendDeduper(a.Redis, a.Logger, cfg.Redis.SendDedupTTL)
	}
	dispatcher := notify.NewDispatcher(a.Repo, email, sms, recorder, a.Logger, opts)

	evaluator := reminder.NewEvaluator(a.Repo, dispatcher, recorder, a.Logger, reminder.EvaluatorConfig{
		Concurrency: cfg.Engine.Concurrency,
		Limit:       cfg.Engine.SettingsLimit,
	})
	queue := delivery.NewProcessor(a.Repo, dispatcher, recorder, a.Logger)
	outboxProc := outbox.NewProcessor(a.Repo, email, sms, cfg.Engine.ProviderTimeout, a.Logger)

	a.Logger.Info("engine assembled",
		zap.String("email_provider", email.Name()),
		zap.String("sms_provider", sms.Name()),
		zap.Bool("send_dedup", opts.Dedup != nil),
		zap.Bool("audit_mirror", mirror != nil),
	)

	return engine.New(evaluator, queue, outboxProc, a.Repo, a.Logger), nil
}

func newAuditPublisher(ctx context.Context, cfg *config.Config) (*sns.Publisher, error) {
	if cfg.AWS.EndpointURL != "" {
		return sns.NewPublisherWithEndpoint(ctx, cfg.AWS.AuditTopicARN, cfg.AWS.EndpointURL, cfg.AWS.SNSRegion)
	}
	return sns.NewPublisher(ctx, cfg.AWS.AuditTopicARN, awsconfig.WithRegion(cfg.AWS.SNSRegion))
}

func breakerConfig(cfg *config.Config, name string) circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:            name,
		MaxFailures:     cfg.Breaker.MaxFailures,
		RecoveryTimeout: cfg.Breaker.RecoveryTimeout,
	}
}

// NewEmailSender returns the configured email provider behind a circuit
// breaker. The log provider is returned bare.
func NewEmailSender(ctx context.Context, cfg *config.Config, logger *zap.Logger) (provider.EmailSender, error) {
	var sender provider.EmailSender
	switch cfg.Email.Provider {
	case "resend":
		sender = provider.NewResendSender(provider.ResendConfig{
			APIKey:  cfg.Email.ResendAPIKey,
			From:    cfg.Email.From,
			BaseURL: cfg.Email.ResendBaseURL,
			Timeout: cfg.Engine.ProviderTimeout,
		}, logger)
	case "ses":
		ses, err := provider.NewSESSender(ctx, provider.SESConfig{
			Region:    cfg.AWS.Region,
			FromEmail: cfg.Email.SESFromEmail,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create ses sender: %w", err)
		}
		sender = ses
	case "sendgrid":
		sender = provider.NewSendGridSender(provider.SendGridConfig{
			APIKey:    cfg.Email.SendGridAPIKey,
			FromEmail: cfg.Email.SESFromEmail,
			FromName:  cfg.Email.FromName,
		}, logger)
	case "smtp":
		sender = provider.NewSMTPSender(provider.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		}, logger)
	case "log":
		return provider.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
	return circuitbreaker.NewProtectedEmail(sender, breakerConfig(cfg, "email_"+sender.Name()), logger), nil
}

// NewSMSSender returns the configured SMS provider behind a circuit breaker.
func NewSMSSender(ctx context.Context, cfg *config.Config, logger *zap.Logger) (provider.SMSSender, error) {
	var sender provider.SMSSender
	switch cfg.SMS.Provider {
	case "twilio":
		sender = provider.NewTwilioSender(provider.TwilioConfig{
			AccountSID: cfg.SMS.TwilioAccountSID,
			AuthToken:  cfg.SMS.TwilioAuthToken,
			From:       cfg.SMS.TwilioFrom,
			BaseURL:    cfg.SMS.TwilioBaseURL,
			Timeout:    cfg.Engine.ProviderTimeout,
		}, logger)
	case "sns":
		s, err := provider.NewSNSSender(ctx, provider.SNSConfig{
			Region:   cfg.AWS.SNSRegion,
			SenderID: cfg.SMS.SNSSenderID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create sns sender: %w", err)
		}
		sender = s
	case "log":
		return provider.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
	}
	return circuitbreaker.NewProtectedSMS(sender, breakerConfig(cfg, "sms_"+sender.Name()), logger), nil
}

// SQSConfig returns the tick queue settings.
func SQSConfig(cfg *config.Config) sqs.Config {
	return sqs.Config{
		Region:   cfg.AWS.SQSRegion,
		QueueURL: cfg.AWS.SQSQueueURL,
		DLQURL:   cfg.AWS.SQSDLQURL,
		Endpoint: cfg.AWS.EndpointURL,
	}
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
