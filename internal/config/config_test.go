package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AWS_REGION", "ap-southeast-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Email.Provider != "resend" {
		t.Errorf("Email.Provider = %q, want resend", cfg.Email.Provider)
	}
	if cfg.SMS.Provider != "twilio" {
		t.Errorf("SMS.Provider = %q, want twilio", cfg.SMS.Provider)
	}
	if cfg.Engine.Concurrency != 8 {
		t.Errorf("Engine.Concurrency = %d, want 8", cfg.Engine.Concurrency)
	}
	if cfg.Engine.ProviderTimeout != 10*time.Second {
		t.Errorf("Engine.ProviderTimeout = %v, want 10s", cfg.Engine.ProviderTimeout)
	}
	if cfg.AWS.SQSRegion != "ap-southeast-1" || cfg.AWS.SNSRegion != "ap-southeast-1" {
		t.Errorf("derived regions = %q/%q, want ap-southeast-1", cfg.AWS.SQSRegion, cfg.AWS.SNSRegion)
	}
	if cfg.Redis.SendDedupTTL != 24*time.Hour {
		t.Errorf("Redis.SendDedupTTL = %v, want 24h", cfg.Redis.SendDedupTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("EMAIL_PROVIDER", "sendgrid")
	t.Setenv("SMS_PROVIDER", "sns")
	t.Setenv("REMINDER_CONCURRENCY", "16")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("SNS_REGION", "eu-west-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Email.Provider != "sendgrid" || cfg.SMS.Provider != "sns" {
		t.Errorf("providers = %q/%q", cfg.Email.Provider, cfg.SMS.Provider)
	}
	if cfg.Engine.Concurrency != 16 {
		t.Errorf("Engine.Concurrency = %d, want 16", cfg.Engine.Concurrency)
	}
	if cfg.Engine.ProviderTimeout != 3*time.Second {
		t.Errorf("Engine.ProviderTimeout = %v, want 3s", cfg.Engine.ProviderTimeout)
	}
	if cfg.AWS.SNSRegion != "eu-west-1" {
		t.Errorf("AWS.SNSRegion = %q, want eu-west-1", cfg.AWS.SNSRegion)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", "PORT", "abc"},
		{"unknown email provider", "EMAIL_PROVIDER", "pigeon"},
		{"unknown sms provider", "SMS_PROVIDER", "fax"},
		{"concurrency too high", "REMINDER_CONCURRENCY", "64"},
		{"concurrency zero", "REMINDER_CONCURRENCY", "0"},
		{"bad env", "ENV", "prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}
