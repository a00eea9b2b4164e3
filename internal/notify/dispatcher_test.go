package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/audit"
	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/provider"
)

type fakeInbox struct {
	mu   sync.Mutex
	rows []*db.Notification
	err  error
}

func (f *fakeInbox) InsertNotification(ctx context.Context, n *db.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, n)
	return nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeAuditor) Record(ctx context.Context, e audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

type fakeEmail struct {
	sent []provider.EmailMessage
	out  provider.Outcome
}

func (f *fakeEmail) Name() string { return "fake" }

func (f *fakeEmail) SendEmail(ctx context.Context, msg provider.EmailMessage) provider.Outcome {
	f.sent = append(f.sent, msg)
	if f.out == (provider.Outcome{}) {
		return provider.Sent("e1")
	}
	return f.out
}

type fakeSMS struct {
	sent []provider.SMSMessage
}

func (f *fakeSMS) Name() string { return "fake" }

func (f *fakeSMS) SendSMS(ctx context.Context, msg provider.SMSMessage) provider.Outcome {
	f.sent = append(f.sent, msg)
	return provider.Sent("s1")
}

type memDedup struct {
	held map[string]bool
}

func (m *memDedup) Reserve(ctx context.Context, key, channel, recipient string) (bool, error) {
	k := key + "|" + channel + "|" + recipient
	if m.held[k] {
		return false, nil
	}
	m.held[k] = true
	return true, nil
}

func (m *memDedup) Release(ctx context.Context, key, channel, recipient string) error {
	delete(m.held, key+"|"+channel+"|"+recipient)
	return nil
}

func newTestDispatcher(opts Options) (*Dispatcher, *fakeInbox, *fakeAuditor, *fakeEmail, *fakeSMS) {
	inbox := &fakeInbox{}
	aud := &fakeAuditor{}
	email := &fakeEmail{}
	sms := &fakeSMS{}
	return NewDispatcher(inbox, email, sms, aud, zap.NewNop(), opts), inbox, aud, email, sms
}

func TestPush_Success(t *testing.T) {
	d, inbox, aud, _, _ := newTestDispatcher(Options{})
	taskID, userID := uuid.New(), uuid.New()

	err := d.Push(context.Background(), Push{UserID: userID, TaskID: taskID, Title: "t", Body: "b", Severity: "overdue"})
	require.NoError(t, err)

	require.Len(t, inbox.rows, 1)
	assert.Equal(t, db.NotificationTypeReminder, inbox.rows[0].Type)
	assert.Equal(t, PriorityNormal, inbox.rows[0].Priority)
	require.Len(t, aud.entries, 1)
	assert.Equal(t, db.ChannelPush, aud.entries[0].Channel)
	assert.Equal(t, db.LogSuccess, aud.entries[0].Status)
}

func TestPush_FailureIsLoggedAndReturned(t *testing.T) {
	d, inbox, aud, _, _ := newTestDispatcher(Options{})
	inbox.err = errors.New("connection reset")

	err := d.Push(context.Background(), Push{UserID: uuid.New(), Title: "t", Body: "b"})
	require.Error(t, err)
	require.Len(t, aud.entries, 1)
	assert.Equal(t, db.LogFailed, aud.entries[0].Status)
	assert.Contains(t, aud.entries[0].Error, "connection reset")
}

func TestEscalate_IndependentRecipients(t *testing.T) {
	d, _, aud, email, sms := newTestDispatcher(Options{})

	assignee, assigner := uuid.New(), uuid.New()
	due := "2025-01-10T09:00:00Z"
	task := &db.Task{ID: uuid.New(), Title: "Report", DueAt: &due, AssignedTo: &assignee, AssignedBy: &assigner}

	d.Escalate(context.Background(), Escalation{
		Task:       task,
		AssigneeID: assignee,
		Profiles: map[uuid.UUID]*db.Profile{
			assignee: {ID: assignee, Email: "a@example.com"},
			assigner: {ID: assigner, Email: "b@example.com", Phone: "+84900000000"},
		},
		Severity: "overdue",
		Message:  "Reminder: Report",
	})

	require.Len(t, aud.entries, 4)
	byUser := map[uuid.UUID]map[string]audit.Entry{assignee: {}, assigner: {}}
	for _, e := range aud.entries {
		byUser[e.UserID][e.Channel] = e
	}

	assert.Equal(t, db.LogSuccess, byUser[assignee][db.ChannelEmail].Status)
	assert.Equal(t, db.LogSkipped, byUser[assignee][db.ChannelSMS].Status)
	assert.Equal(t, provider.SkipNoPhone, byUser[assignee][db.ChannelSMS].Error)
	assert.Equal(t, db.LogSuccess, byUser[assigner][db.ChannelEmail].Status)
	assert.Equal(t, db.LogSuccess, byUser[assigner][db.ChannelSMS].Status)

	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+84900000000", sms.sent[0].To)
	assert.Contains(t, sms.sent[0].Body, "(assigner)")
	require.Len(t, email.sent, 2)
}

func TestEscalate_SameAssignerOnlyOnce(t *testing.T) {
	d, _, aud, _, _ := newTestDispatcher(Options{})
	user := uuid.New()
	task := &db.Task{ID: uuid.New(), Title: "Self", AssignedBy: &user}

	d.Escalate(context.Background(), Escalation{Task: task, AssigneeID: user, Profiles: map[uuid.UUID]*db.Profile{}})

	assert.Len(t, aud.entries, 2, "assignee email and sms only")
}

func TestEmail_DedupSuppressesSecondSend(t *testing.T) {
	dedup := &memDedup{held: map[string]bool{}}
	d, _, aud, email, _ := newTestDispatcher(Options{Dedup: dedup})
	target := Target{TaskID: uuid.New(), UserID: uuid.New(), Profile: &db.Profile{Email: "a@example.com"}, DedupKey: "entry-1"}

	first := d.Email(context.Background(), target, provider.EmailMessage{Subject: "s", HTML: "h"})
	second := d.Email(context.Background(), target, provider.EmailMessage{Subject: "s", HTML: "h"})

	assert.True(t, first.OK)
	assert.Equal(t, skipDuplicate, second.Skipped)
	assert.Len(t, email.sent, 1)
	assert.Len(t, aud.entries, 2)
}

func TestEmail_FailureReleasesReservation(t *testing.T) {
	dedup := &memDedup{held: map[string]bool{}}
	d, _, _, email, _ := newTestDispatcher(Options{Dedup: dedup})
	email.out = provider.Failedf("resend: 500")
	target := Target{Profile: &db.Profile{Email: "a@example.com"}, DedupKey: "entry-2"}

	out := d.Email(context.Background(), target, provider.EmailMessage{HTML: "h"})
	assert.Equal(t, "failed", out.Status())
	assert.Empty(t, dedup.held)
}

func TestEmail_CarriesTimeout(t *testing.T) {
	var deadline time.Time
	sender := &deadlineEmail{seen: &deadline}
	d := NewDispatcher(&fakeInbox{}, sender, &fakeSMS{}, &fakeAuditor{}, zap.NewNop(), Options{Timeout: time.Second})

	d.Email(context.Background(), Target{Profile: &db.Profile{Email: "a@example.com"}}, provider.EmailMessage{})
	assert.False(t, deadline.IsZero(), "provider call should carry a deadline")
}

type deadlineEmail struct {
	seen *time.Time
}

func (d *deadlineEmail) Name() string { return "deadline" }

func (d *deadlineEmail) SendEmail(ctx context.Context, msg provider.EmailMessage) provider.Outcome {
	*d.seen, _ = ctx.Deadline()
	return provider.Sent("")
}

func TestEmailHTML_Escapes(t *testing.T) {
	html := EmailHTML("🔥 Overdue: <b>x</b>", "a & b", nil, time.UTC, RoleAssigner)
	assert.Contains(t, html, "&lt;b&gt;x&lt;/b&gt;")
	assert.Contains(t, html, "a &amp; b")
	assert.True(t, strings.Contains(html, "You assigned this task"))
}

func TestEmailSubject(t *testing.T) {
	assert.Equal(t, "🔥 Overdue: Report", EmailSubject("overdue", "Report", RoleAssignee))
	assert.Equal(t, "⚠️ Due soon: Report", EmailSubject("nearly_due", "Report", RoleAssignee))
	assert.Equal(t, "🔥 Overdue (assigner): Task", EmailSubject("overdue", "", RoleAssigner))
}
