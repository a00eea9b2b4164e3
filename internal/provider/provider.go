// Package provider wraps the email and SMS vendors behind a send -> Outcome
// contract. A channel without credentials reports Skipped instead of failing.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// EmailMessage is one outbound email. HTML is required; Text is optional.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// SMSMessage is one outbound text message. To may be unnormalized.
type SMSMessage struct {
	To   string
	Body string
}

// EmailSender delivers email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) Outcome
	Name() string
}

// SMSSender delivers SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) Outcome
	Name() string
}

// Skip reasons
const (
	SkipMissingResendKey   = "missing_resend_api_key"
	SkipMissingTwilio      = "missing_twilio_config"
	SkipMissingSendGridKey = "missing_sendgrid_api_key"
	SkipMissingSMTP        = "missing_smtp_config"
	SkipMissingSender      = "missing_sender"
	SkipNoEmail            = "no_email"
	SkipNoPhone            = "no_phone"
)

// ErrInvalidPhone is reported when a number cannot be normalized.
var ErrInvalidPhone = errors.New("invalid_phone")

// Outcome is the result of one provider call. Exactly one of OK, Skipped
// or Err describes it.
type Outcome struct {
	OK      bool   `json:"ok"`
	ID      string `json:"id,omitempty"`
	Err     string `json:"error,omitempty"`
	Skipped string `json:"skipped,omitempty"`
}

// Sent is a successful outcome with the vendor message id.
func Sent(id string) Outcome {
	return Outcome{OK: true, ID: id}
}

// Failed is an attempted delivery that the vendor or transport rejected.
func Failed(err error) Outcome {
	if err == nil {
		err = errors.New("unknown_error")
	}
	return Outcome{Err: err.Error()}
}

// Failedf formats a failure message.
func Failedf(format string, args ...any) Outcome {
	return Outcome{Err: fmt.Sprintf(format, args...)}
}

// Skip is a delivery that was not attempted.
func Skip(reason string) Outcome {
	return Outcome{Skipped: reason}
}

// Status maps the outcome onto the audit log status values.
func (o Outcome) Status() string {
	switch {
	case o.OK:
		return "success"
	case o.Skipped != "":
		return "skipped"
	default:
		return "failed"
	}
}

// Reason returns the failure or skip reason, empty on success.
func (o Outcome) Reason() string {
	if o.Err != "" {
		return o.Err
	}
	return o.Skipped
}
