package app

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/circuitbreaker"
	"github.com/lalithlochan/remindr/internal/config"
	"github.com/lalithlochan/remindr/internal/provider"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Breaker.MaxFailures = 3
	return cfg
}

func TestNewEmailSender(t *testing.T) {
	tests := []struct {
		provider string
		name     string
		wrapped  bool
	}{
		{"resend", "resend", true},
		{"sendgrid", "sendgrid", true},
		{"smtp", "smtp", true},
		{"log", "log", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testConfig()
			cfg.Email.Provider = tt.provider

			sender, err := NewEmailSender(context.Background(), cfg, zap.NewNop())
			if err != nil {
				t.Fatalf("NewEmailSender() error = %v", err)
			}
			if sender.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", sender.Name(), tt.name)
			}
			_, protected := sender.(*circuitbreaker.ProtectedEmail)
			if protected != tt.wrapped {
				t.Errorf("wrapped in breaker = %v, want %v", protected, tt.wrapped)
			}
		})
	}
}

func TestNewEmailSender_Unknown(t *testing.T) {
	cfg := testConfig()
	cfg.Email.Provider = "pigeon"

	if _, err := NewEmailSender(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewSMSSender(t *testing.T) {
	cfg := testConfig()
	cfg.SMS.Provider = "twilio"

	sender, err := NewSMSSender(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSMSSender() error = %v", err)
	}
	if _, ok := sender.(*circuitbreaker.ProtectedSMS); !ok {
		t.Errorf("twilio sender should be wrapped in a breaker, got %T", sender)
	}

	// no credentials configured
	out := sender.SendSMS(context.Background(), provider.SMSMessage{To: "+84901234567", Body: "hi"})
	if out.Skipped != provider.SkipMissingTwilio {
		t.Errorf("outcome = %+v, want skipped %s", out, provider.SkipMissingTwilio)
	}

	cfg.SMS.Provider = "log"
	sender, err = NewSMSSender(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSMSSender(log) error = %v", err)
	}
	if sender.Name() != "log" {
		t.Errorf("Name() = %q, want log", sender.Name())
	}
}

func TestSQSConfig(t *testing.T) {
	cfg := testConfig()
	cfg.AWS.SQSRegion = "ap-southeast-1"
	cfg.AWS.SQSQueueURL = "https://sqs.local/ticks"
	cfg.AWS.EndpointURL = "http://localhost:4566"

	got := SQSConfig(cfg)
	if got.Region != "ap-southeast-1" || got.QueueURL != "https://sqs.local/ticks" || got.Endpoint != "http://localhost:4566" {
		t.Errorf("SQSConfig() = %+v", got)
	}
}
