package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTwilioURL = "https://api.twilio.com"

// TwilioConfig configures the Twilio Messages API client.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	client  *http.Client
	cfg     TwilioConfig
	baseURL string
	logger  *zap.Logger
}

func NewTwilioSender(cfg TwilioConfig, logger *zap.Logger) *TwilioSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTwilioURL
	}

	return &TwilioSender{
		client:  &http.Client{Timeout: timeout},
		cfg:     cfg,
		baseURL: baseURL,
		logger:  logger,
	}
}

func (s *TwilioSender) Name() string { return "twilio" }

type twilioResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

// SendSMS normalizes the destination and posts it to Messages.json.
func (s *TwilioSender) SendSMS(ctx context.Context, msg SMSMessage) Outcome {
	if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" || s.cfg.From == "" {
		return Skip(SkipMissingTwilio)
	}
	if strings.TrimSpace(msg.To) == "" {
		return Skip(SkipNoPhone)
	}
	to, ok := NormalizePhone(msg.To)
	if !ok {
		return Failed(ErrInvalidPhone)
	}

	form := url.Values{}
	form.Set("From", s.cfg.From)
	form.Set("To", to)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Failed(fmt.Errorf("build twilio request: %w", err))
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("twilio request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var out twilioResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := out.Message
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		s.logger.Warn("twilio rejected sms",
			zap.Int("status", resp.StatusCode),
			zap.String("error", reason),
		)
		return Failedf("twilio: %s", reason)
	}

	s.logger.Debug("sms sent via twilio", zap.String("sid", out.SID))
	return Sent(out.SID)
}
