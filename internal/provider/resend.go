package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultResendURL   = "https://api.resend.com"
	DefaultFromEmail   = "Remindr <no-reply@example.com>"
	defaultHTTPTimeout = 15 * time.Second
)

// ResendConfig configures the Resend email API client.
type ResendConfig struct {
	APIKey  string
	From    string
	BaseURL string
	Timeout time.Duration
}

// ResendSender sends email through the Resend HTTP API.
type ResendSender struct {
	client  *http.Client
	apiKey  string
	from    string
	baseURL string
	logger  *zap.Logger
}

func NewResendSender(cfg ResendConfig, logger *zap.Logger) *ResendSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	from := cfg.From
	if from == "" {
		from = DefaultFromEmail
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultResendURL
	}

	return &ResendSender{
		client:  &http.Client{Timeout: timeout},
		apiKey:  cfg.APIKey,
		from:    from,
		baseURL: baseURL,
		logger:  logger,
	}
}

func (s *ResendSender) Name() string { return "resend" }

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SendEmail posts one message to /emails.
func (s *ResendSender) SendEmail(ctx context.Context, msg EmailMessage) Outcome {
	if s.apiKey == "" {
		return Skip(SkipMissingResendKey)
	}
	if strings.TrimSpace(msg.To) == "" {
		return Skip(SkipNoEmail)
	}

	body, err := json.Marshal(resendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return Failed(fmt.Errorf("encode resend request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return Failed(fmt.Errorf("build resend request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("resend request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var out resendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := out.Message
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		s.logger.Warn("resend rejected email",
			zap.Int("status", resp.StatusCode),
			zap.String("error", reason),
		)
		return Failedf("resend: %s", reason)
	}

	s.logger.Debug("email sent via resend", zap.String("message_id", out.ID))
	return Sent(out.ID)
}
