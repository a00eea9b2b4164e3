package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+84 912-345-678", "+84912345678", true},
		{"0084912345678", "+84912345678", true},
		{"0912345678", "+84912345678", true},
		{"14155550100", "+14155550100", true},
		{"12345", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("NormalizePhone(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOutcomeStatus(t *testing.T) {
	tests := []struct {
		name   string
		o      Outcome
		status string
		reason string
	}{
		{"sent", Sent("m1"), "success", ""},
		{"skipped", Skip(SkipNoEmail), "skipped", SkipNoEmail},
		{"failed", Failed(errors.New("boom")), "failed", "boom"},
		{"failed_nil", Failed(nil), "failed", "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.Status(); got != tt.status {
				t.Errorf("Status() = %q, want %q", got, tt.status)
			}
			if got := tt.o.Reason(); got != tt.reason {
				t.Errorf("Reason() = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestResendSender(t *testing.T) {
	var gotAuth string
	var gotBody resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("path = %s, want /emails", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"re_123"}`))
	}))
	defer srv.Close()

	s := NewResendSender(ResendConfig{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	out := s.SendEmail(context.Background(), EmailMessage{To: "a@example.com", Subject: "Hi", HTML: "<p>x</p>"})

	if !out.OK || out.ID != "re_123" {
		t.Fatalf("outcome = %+v, want ok with id re_123", out)
	}
	if gotAuth != "Bearer key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.From != DefaultFromEmail || len(gotBody.To) != 1 || gotBody.To[0] != "a@example.com" {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestResendSenderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	s := NewResendSender(ResendConfig{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	out := s.SendEmail(context.Background(), EmailMessage{To: "a@example.com", Subject: "Hi", HTML: "x"})
	if out.Status() != "failed" || !strings.Contains(out.Err, "invalid from") {
		t.Errorf("outcome = %+v, want failure carrying vendor message", out)
	}

	noKey := NewResendSender(ResendConfig{}, zap.NewNop())
	if out := noKey.SendEmail(context.Background(), EmailMessage{To: "a@example.com"}); out.Skipped != SkipMissingResendKey {
		t.Errorf("missing key outcome = %+v", out)
	}
}

func TestTwilioSender(t *testing.T) {
	var user, pass, to string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, _ = r.BasicAuth()
		_ = r.ParseForm()
		to = r.PostForm.Get("To")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{AccountSID: "AC1", AuthToken: "tok", From: "+100000000", BaseURL: srv.URL}, zap.NewNop())

	out := s.SendSMS(context.Background(), SMSMessage{To: "0912 345 678", Body: "hi"})
	if !out.OK || out.ID != "SM1" {
		t.Fatalf("outcome = %+v", out)
	}
	if user != "AC1" || pass != "tok" {
		t.Errorf("basic auth = %s:%s", user, pass)
	}
	if to != "+84912345678" {
		t.Errorf("To = %q, want normalized number", to)
	}

	if out := s.SendSMS(context.Background(), SMSMessage{To: "abc", Body: "hi"}); out.Err != ErrInvalidPhone.Error() {
		t.Errorf("invalid phone outcome = %+v", out)
	}

	unconfigured := NewTwilioSender(TwilioConfig{AccountSID: "AC1"}, zap.NewNop())
	if out := unconfigured.SendSMS(context.Background(), SMSMessage{To: "+84912345678"}); out.Skipped != SkipMissingTwilio {
		t.Errorf("missing config outcome = %+v", out)
	}
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender(t *testing.T) {
	fake := &fakeSES{}
	s := &SESSender{client: fake, from: "noreply@example.com", logger: zap.NewNop()}

	out := s.SendEmail(context.Background(), EmailMessage{To: "a@example.com", Subject: "S", HTML: "<b>x</b>", Text: "x"})
	if !out.OK || out.ID != "ses-1" {
		t.Fatalf("outcome = %+v", out)
	}
	if fake.input.Message.Body.Html == nil || fake.input.Message.Body.Text == nil {
		t.Error("expected both html and text parts")
	}

	fake.err = errors.New("throttled")
	if out := s.SendEmail(context.Background(), EmailMessage{To: "a@example.com", HTML: "x"}); out.Status() != "failed" {
		t.Errorf("outcome = %+v, want failed", out)
	}
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSNSSender(t *testing.T) {
	fake := &fakeSNS{}
	s := &SNSSender{client: fake, logger: zap.NewNop()}

	out := s.SendSMS(context.Background(), SMSMessage{To: "0912345678", Body: "hi"})
	if !out.OK {
		t.Fatalf("outcome = %+v", out)
	}
	if got := aws.ToString(fake.input.PhoneNumber); got != "+84912345678" {
		t.Errorf("PhoneNumber = %q", got)
	}
	if out := s.SendSMS(context.Background(), SMSMessage{}); out.Skipped != SkipNoPhone {
		t.Errorf("empty phone outcome = %+v", out)
	}
}

type fakeSendGrid struct {
	status int
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	return &rest.Response{
		StatusCode: f.status,
		Headers:    map[string][]string{"X-Message-Id": {"sg-1"}},
	}, nil
}

func TestSendGridSender(t *testing.T) {
	s := &SendGridSender{client: &fakeSendGrid{status: 202}, fromEmail: "from@example.com", logger: zap.NewNop()}
	if out := s.SendEmail(context.Background(), EmailMessage{To: "a@example.com", HTML: "x"}); !out.OK || out.ID != "sg-1" {
		t.Errorf("outcome = %+v", out)
	}

	s.client = &fakeSendGrid{status: 401}
	if out := s.SendEmail(context.Background(), EmailMessage{To: "a@example.com", HTML: "x"}); out.Status() != "failed" {
		t.Errorf("outcome = %+v, want failed", out)
	}

	if out := NewSendGridSender(SendGridConfig{}, zap.NewNop()).SendEmail(context.Background(), EmailMessage{To: "a@example.com"}); out.Skipped != SkipMissingSendGridKey {
		t.Errorf("outcome = %+v, want skipped", out)
	}
}

type fakeDialer struct {
	sent int
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent += len(m)
	return nil
}

func TestSMTPSender(t *testing.T) {
	d := &fakeDialer{}
	s := &SMTPSender{dialer: d, from: "from@example.com", logger: zap.NewNop()}

	if out := s.SendEmail(context.Background(), EmailMessage{To: "a@example.com", Subject: "S", HTML: "x"}); !out.OK {
		t.Errorf("outcome = %+v", out)
	}
	if d.sent != 1 {
		t.Errorf("sent = %d, want 1", d.sent)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if out := s.SendEmail(ctx, EmailMessage{To: "a@example.com", HTML: "x"}); out.Status() != "failed" {
		t.Errorf("cancelled outcome = %+v", out)
	}

	if out := NewSMTPSender(SMTPConfig{}, zap.NewNop()).SendEmail(context.Background(), EmailMessage{To: "a@example.com"}); out.Skipped != SkipMissingSMTP {
		t.Errorf("outcome = %+v, want skipped", out)
	}
}
