// Package config loads remindr's configuration from the environment. A .env
// file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     int    `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"ENV" default:"development" validate:"oneof=development staging production test"`

	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Email    EmailConfig
	SMS      SMSConfig
	Engine   EngineConfig
	Breaker  BreakerConfig
	API      APIConfig
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432" validate:"min=1,max=65535"`
	User     string `envconfig:"DB_USER" default:"remindr"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"remindr"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
}

// RedisConfig is optional; without it the send dedup and rate limiter are off.
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	URL      string `envconfig:"REDIS_URL"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	SendDedupTTL time.Duration `envconfig:"SEND_DEDUP_TTL" default:"24h"`
}

type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"` // LocalStack

	SQSRegion   string `envconfig:"SQS_REGION"`
	SQSQueueURL string `envconfig:"SQS_QUEUE_URL"`
	SQSDLQURL   string `envconfig:"SQS_DLQ_URL"`

	SNSRegion     string `envconfig:"SNS_REGION"`
	AuditTopicARN string `envconfig:"AUDIT_TOPIC_ARN"`
}

type EmailConfig struct {
	Provider string `envconfig:"EMAIL_PROVIDER" default:"resend" validate:"oneof=resend ses sendgrid smtp log"`
	From     string `envconfig:"EMAIL_FROM" default:"Remindr <no-reply@example.com>"`
	FromName string `envconfig:"EMAIL_FROM_NAME" default:"Remindr"`

	ResendAPIKey  string `envconfig:"RESEND_API_KEY"`
	ResendBaseURL string `envconfig:"RESEND_BASE_URL"`

	SESFromEmail string `envconfig:"SES_FROM_EMAIL"`

	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

type SMSConfig struct {
	Provider string `envconfig:"SMS_PROVIDER" default:"twilio" validate:"oneof=twilio sns log"`

	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string `envconfig:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL    string `envconfig:"TWILIO_BASE_URL"`

	SNSSenderID string `envconfig:"SNS_SENDER_ID"`
}

type EngineConfig struct {
	Concurrency     int           `envconfig:"REMINDER_CONCURRENCY" default:"8" validate:"min=1,max=16"`
	SettingsLimit   int           `envconfig:"SETTINGS_LIMIT" default:"1000" validate:"min=1"` // page size of the settings scan
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	DefaultTimezone string        `envconfig:"DEFAULT_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	TickInterval    time.Duration `envconfig:"TICK_INTERVAL" default:"0s"` // 0 disables the in-process ticker
}

type BreakerConfig struct {
	MaxFailures     uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`
	RecoveryTimeout time.Duration `envconfig:"BREAKER_RECOVERY_TIMEOUT" default:"30s"`
}

type APIConfig struct {
	TriggerToken       string `envconfig:"TRIGGER_TOKEN"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30" validate:"min=1"`
}

// Load reads configuration from the environment with defaults and validates it.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.AWS.SQSRegion == "" {
		cfg.AWS.SQSRegion = cfg.AWS.Region
	}
	if cfg.AWS.SNSRegion == "" {
		cfg.AWS.SNSRegion = cfg.AWS.Region
	}
	if cfg.Email.SESFromEmail == "" {
		cfg.Email.SESFromEmail = cfg.Email.From
	}
	if cfg.Engine.ProviderTimeout <= 0 {
		cfg.Engine.ProviderTimeout = 10 * time.Second
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs with the production logger.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
