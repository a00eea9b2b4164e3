// Package delivery drains the reminder queue: every due entry gets an in-app
// notification, and email or SMS depending on how close the task is to its
// due date.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/audit"
	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/notify"
	"github.com/lalithlochan/remindr/internal/provider"
	"github.com/lalithlochan/remindr/internal/reminder"
)

const (
	DefaultBatchSize = 100
	MaxBatchSize     = 500
)

// Store is the queue and profile access the processor needs.
type Store interface {
	ListDueEntries(ctx context.Context, now time.Time, limit int) ([]*db.QueueEntry, error)
	MarkEntrySent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error)
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*db.Profile, error)
}

// Notifier is the channel fan-out used per entry.
type Notifier interface {
	Push(ctx context.Context, p notify.Push) error
	Email(ctx context.Context, t notify.Target, msg provider.EmailMessage) provider.Outcome
	Escalate(ctx context.Context, e notify.Escalation)
	Location() *time.Location
}

// Processor delivers due queue entries oldest first.
type Processor struct {
	store    Store
	notifier Notifier
	audit    notify.Auditor
	logger   *zap.Logger
}

func NewProcessor(store Store, notifier Notifier, auditor notify.Auditor, logger *zap.Logger) *Processor {
	return &Processor{
		store:    store,
		notifier: notifier,
		audit:    auditor,
		logger:   logger,
	}
}

// ClampBatch applies the default and upper bound to a requested batch size.
func ClampBatch(limit int) int {
	if limit <= 0 {
		return DefaultBatchSize
	}
	if limit > MaxBatchSize {
		return MaxBatchSize
	}
	return limit
}

// Process delivers up to limit due entries and returns how many it handled.
func (p *Processor) Process(ctx context.Context, now time.Time, limit int) (int, error) {
	entries, err := p.store.ListDueEntries(ctx, now, ClampBatch(limit))
	if err != nil {
		return 0, fmt.Errorf("list due entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	profiles := p.loadProfiles(ctx, entries)

	processed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		result := p.deliverSafely(ctx, entry, profiles, now)
		metrics.RecordQueueEntryProcessed(result)
		processed++
	}

	p.logger.Info("processed reminder queue", zap.Int("entries", processed))
	return processed, nil
}

// Entry results
const (
	ResultDelivered     = "delivered"
	ResultTaskCompleted = "task_completed"
	ResultPushFailed    = "push_failed"
	ResultAlreadySent   = "already_sent"
	ResultError         = "error"
)

// deliverSafely turns a panic while delivering one entry into a failed log
// row so the rest of the batch still goes out. The entry stays unsent.
func (p *Processor) deliverSafely(ctx context.Context, entry *db.QueueEntry, profiles map[uuid.UUID]*db.Profile, now time.Time) (result string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		result = ResultError
		p.logger.Error("skipping reminder queue entry due to panic",
			zap.String("entry_id", entry.ID.String()),
			zap.String("task_id", entry.TaskID.String()),
			zap.String("user_id", entry.UserID.String()),
			zap.Any("panic", r),
		)
		p.audit.Record(ctx, audit.Entry{
			TaskID:   entry.TaskID,
			UserID:   entry.UserID,
			Channel:  db.ChannelPush,
			Status:   db.LogFailed,
			Severity: string(reminder.SeverityFor(&entry.Task, now)),
			Message:  "Error processing reminder queue entry",
			Error:    fmt.Sprintf("panic: %v", r),
			Snapshot: map[string]any{"queue_entry_id": entry.ID, "scheduled_at": entry.ScheduledAt, "entry": entry},
		})
	}()
	return p.deliver(ctx, entry, profiles, now)
}

func (p *Processor) deliver(ctx context.Context, entry *db.QueueEntry, profiles map[uuid.UUID]*db.Profile, now time.Time) string {
	task := &entry.Task
	logger := p.logger.With(zap.String("entry_id", entry.ID.String()), zap.String("task_id", entry.TaskID.String()))
	snapshot := map[string]any{"queue_entry_id": entry.ID, "scheduled_at": entry.ScheduledAt}

	if task.CompletedAt != nil {
		p.audit.Record(ctx, audit.Entry{
			TaskID:   entry.TaskID,
			UserID:   entry.UserID,
			Channel:  db.ChannelPush,
			Status:   db.LogSkipped,
			Severity: string(reminder.SeverityInProgress),
			Message:  entry.Message,
			Error:    ResultTaskCompleted,
			Snapshot: snapshot,
		})
		return p.markSent(ctx, entry, now, ResultTaskCompleted, logger)
	}

	severity := reminder.SeverityFor(task, now)

	err := p.notifier.Push(ctx, notify.Push{
		UserID:     entry.UserID,
		TaskID:     entry.TaskID,
		Title:      reminder.QueueTitle(task.Title),
		Body:       entry.Message,
		Severity:   string(severity),
		LogMessage: entry.Message,
		Snapshot:   snapshot,
	})
	// in-app is at-least-once: an entry whose inbox insert failed is retried
	// next run, and email or SMS wait for that retry so they go out once
	if err != nil {
		logger.Warn("in-app delivery failed, entry stays queued", zap.Error(err))
		return ResultPushFailed
	}

	switch severity {
	case reminder.SeverityNearlyDue:
		loc := p.notifier.Location()
		subject := notify.EmailSubject(string(severity), task.Title, notify.RoleAssignee)
		p.notifier.Email(ctx, notify.Target{
			TaskID:   entry.TaskID,
			UserID:   entry.UserID,
			Profile:  profiles[entry.UserID],
			Severity: string(severity),
			Message:  entry.Message,
			Snapshot: snapshot,
			DedupKey: entry.ID.String(),
		}, provider.EmailMessage{
			Subject: subject,
			HTML:    notify.EmailHTML(subject, entry.Message, task.Due(), loc, notify.RoleAssignee),
			Text:    notify.EmailText(subject, entry.Message, task.Due(), loc),
		})
	case reminder.SeverityOverdue:
		p.notifier.Escalate(ctx, notify.Escalation{
			Task:       task,
			AssigneeID: entry.UserID,
			Profiles:   profiles,
			Severity:   string(severity),
			Message:    entry.Message,
			Snapshot:   snapshot,
			DedupKey:   entry.ID.String(),
		})
	}

	return p.markSent(ctx, entry, now, ResultDelivered, logger)
}

func (p *Processor) markSent(ctx context.Context, entry *db.QueueEntry, now time.Time, result string, logger *zap.Logger) string {
	ok, err := p.store.MarkEntrySent(ctx, entry.ID, now)
	if err != nil {
		logger.Error("failed to mark queue entry sent", zap.Error(err))
		return result
	}
	if !ok {
		logger.Info("queue entry already marked sent by another run")
		return ResultAlreadySent
	}
	return result
}

// loadProfiles fetches assignees and assigners in one query. A failed
// lookup degrades to no profiles, which turns email and SMS into skips.
func (p *Processor) loadProfiles(ctx context.Context, entries []*db.QueueEntry) map[uuid.UUID]*db.Profile {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range entries {
		add(e.UserID)
		if e.Task.AssignedBy != nil {
			add(*e.Task.AssignedBy)
		}
	}

	profiles, err := p.store.GetProfiles(ctx, ids)
	if err != nil {
		p.logger.Warn("failed to load recipient profiles", zap.Error(err))
		return map[uuid.UUID]*db.Profile{}
	}
	return profiles
}
