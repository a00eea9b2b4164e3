// Package notify fans a reminder out to its channels: the in-app inbox,
// email and SMS. Every attempt lands in the audit log, one row per channel
// and recipient, and no channel's failure blocks another.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/audit"
	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/provider"
	"github.com/lalithlochan/remindr/internal/timeutil"
)

// DefaultTimeout bounds each provider call.
const DefaultTimeout = 10 * time.Second

// Notification priorities
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Inbox stores in-app notifications.
type Inbox interface {
	InsertNotification(ctx context.Context, n *db.Notification) error
}

// Auditor records delivery attempts.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

// Deduper guards one external send per (key, channel, recipient).
type Deduper interface {
	Reserve(ctx context.Context, key, channel, recipient string) (bool, error)
	Release(ctx context.Context, key, channel, recipient string) error
}

// Options tune a Dispatcher.
type Options struct {
	Timeout  time.Duration
	Dedup    Deduper
	Location *time.Location
}

// Dispatcher delivers to the in-app, email and SMS channels.
type Dispatcher struct {
	inbox   Inbox
	email   provider.EmailSender
	sms     provider.SMSSender
	audit   Auditor
	dedup   Deduper
	timeout time.Duration
	loc     *time.Location
	logger  *zap.Logger
}

func NewDispatcher(inbox Inbox, email provider.EmailSender, sms provider.SMSSender, auditor Auditor, logger *zap.Logger, opts Options) *Dispatcher {
	d := &Dispatcher{
		inbox:   inbox,
		email:   email,
		sms:     sms,
		audit:   auditor,
		dedup:   opts.Dedup,
		timeout: opts.Timeout,
		loc:     opts.Location,
		logger:  logger,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.loc == nil {
		d.loc = timeutil.LoadLocation(timeutil.DefaultTimezone)
	}
	return d
}

// Location is the zone used to render due dates.
func (d *Dispatcher) Location() *time.Location {
	return d.loc
}

// Push is one in-app notification.
type Push struct {
	UserID   uuid.UUID
	TaskID   uuid.UUID
	Title    string
	Body     string
	Priority string
	Severity string
	// LogMessage is stored on the audit row; Body when empty.
	LogMessage string
	Snapshot   any
}

// Push inserts the inbox row and records push/success or push/failed. The
// error is returned because callers only mark work done when it succeeded.
func (d *Dispatcher) Push(ctx context.Context, p Push) error {
	priority := p.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	n := &db.Notification{
		UserID:   p.UserID,
		Type:     db.NotificationTypeReminder,
		Title:    p.Title,
		Message:  p.Body,
		Priority: priority,
	}
	if p.TaskID != uuid.Nil {
		id := p.TaskID
		n.TaskID = &id
	}

	msg := p.LogMessage
	if msg == "" {
		msg = p.Body
	}
	entry := audit.Entry{
		TaskID:   p.TaskID,
		UserID:   p.UserID,
		Channel:  db.ChannelPush,
		Severity: p.Severity,
		Message:  msg,
		Snapshot: p.Snapshot,
	}

	if err := d.inbox.InsertNotification(ctx, n); err != nil {
		entry.Status = db.LogFailed
		entry.Error = err.Error()
		d.audit.Record(ctx, entry)
		return fmt.Errorf("push notification: %w", err)
	}

	entry.Status = db.LogSuccess
	d.audit.Record(ctx, entry)
	return nil
}

// Target identifies one external recipient of a task reminder.
type Target struct {
	TaskID   uuid.UUID
	UserID   uuid.UUID
	Profile  *db.Profile
	Severity string
	Message  string
	Snapshot any
	// DedupKey scopes the send guard, normally the queue entry id. Empty disables it.
	DedupKey string
}

func (t Target) entry(channel string, out provider.Outcome) audit.Entry {
	return audit.Entry{
		TaskID:   t.TaskID,
		UserID:   t.UserID,
		Channel:  channel,
		Status:   out.Status(),
		Severity: t.Severity,
		Message:  t.Message,
		Error:    out.Reason(),
		Snapshot: t.Snapshot,
	}
}

// Email sends msg to the target's address and records the attempt.
func (d *Dispatcher) Email(ctx context.Context, t Target, msg provider.EmailMessage) provider.Outcome {
	if t.Profile == nil || t.Profile.Email == "" {
		out := provider.Skip(provider.SkipNoEmail)
		d.audit.Record(ctx, t.entry(db.ChannelEmail, out))
		return out
	}
	msg.To = t.Profile.Email

	out := d.guarded(ctx, t.DedupKey, db.ChannelEmail, msg.To, func(ctx context.Context) provider.Outcome {
		return d.email.SendEmail(ctx, msg)
	})
	d.audit.Record(ctx, t.entry(db.ChannelEmail, out))
	return out
}

// SMS sends body to the target's phone and records the attempt. A phone
// that does not normalize counts as no phone.
func (d *Dispatcher) SMS(ctx context.Context, t Target, body string) provider.Outcome {
	var phone string
	if t.Profile != nil {
		phone, _ = provider.NormalizePhone(t.Profile.Phone)
	}
	if phone == "" {
		out := provider.Skip(provider.SkipNoPhone)
		d.audit.Record(ctx, t.entry(db.ChannelSMS, out))
		return out
	}

	out := d.guarded(ctx, t.DedupKey, db.ChannelSMS, phone, func(ctx context.Context) provider.Outcome {
		return d.sms.SendSMS(ctx, provider.SMSMessage{To: phone, Body: body})
	})
	d.audit.Record(ctx, t.entry(db.ChannelSMS, out))
	return out
}

const skipDuplicate = "duplicate_send"

func (d *Dispatcher) guarded(ctx context.Context, key, channel, recipient string, send func(context.Context) provider.Outcome) provider.Outcome {
	if d.dedup != nil && key != "" {
		ok, err := d.dedup.Reserve(ctx, key, channel, recipient)
		if err != nil {
			// Redis trouble must not stop delivery.
			d.logger.Warn("send dedup unavailable", zap.String("channel", channel), zap.Error(err))
		} else if !ok {
			return provider.Skip(skipDuplicate)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	out := send(callCtx)

	if !out.OK && d.dedup != nil && key != "" {
		if err := d.dedup.Release(ctx, key, channel, recipient); err != nil {
			d.logger.Warn("failed to release send reservation", zap.String("channel", channel), zap.Error(err))
		}
	}
	return out
}

// Escalation describes an overdue task to escalate to its assignee and,
// when different, its assigner.
type Escalation struct {
	Task       *db.Task
	AssigneeID uuid.UUID
	Profiles   map[uuid.UUID]*db.Profile
	Severity   string
	Message    string
	Snapshot   any
	DedupKey   string
}

// Escalate emails and texts each recipient independently. A recipient
// without an address or phone is logged as skipped for that channel only.
func (d *Dispatcher) Escalate(ctx context.Context, e Escalation) {
	due := e.Task.Due()

	d.escalateTo(ctx, e, e.AssigneeID, RoleAssignee, due)
	if by := e.Task.AssignedBy; by != nil && *by != e.AssigneeID {
		d.escalateTo(ctx, e, *by, RoleAssigner, due)
	}
}

func (d *Dispatcher) escalateTo(ctx context.Context, e Escalation, userID uuid.UUID, role Role, due *time.Time) {
	t := Target{
		TaskID:   e.Task.ID,
		UserID:   userID,
		Profile:  e.Profiles[userID],
		Severity: e.Severity,
		Message:  e.Message,
		Snapshot: e.Snapshot,
		DedupKey: e.DedupKey,
	}

	subject := EmailSubject("overdue", e.Task.Title, role)
	d.Email(ctx, t, provider.EmailMessage{
		Subject: subject,
		HTML:    EmailHTML(subject, e.Message, due, d.loc, role),
		Text:    EmailText(subject, e.Message, due, d.loc),
	})
	d.SMS(ctx, t, SMSBody(e.Task.Title, due, d.loc, role))
}
