// Package engine is the single entry point every trigger calls into: HTTP,
// Lambda, SQS ticks and the CLI all run the same jobs through an Engine.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/outbox"
)

// Jobs a trigger can request
const (
	JobReminders = "reminders"
	JobOutbox    = "outbox"
)

// SettingsEvaluator runs one pass over the active reminder settings.
type SettingsEvaluator interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// QueueProcessor delivers due queue entries.
type QueueProcessor interface {
	Process(ctx context.Context, now time.Time, limit int) (int, error)
}

// OutboxProcessor drains one outbox kind.
type OutboxProcessor interface {
	Process(ctx context.Context, kind db.OutboxKind, limit int) (outbox.Counts, error)
}

// Store backs the maintenance operations.
type Store interface {
	CountPendingForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)
	CleanupTask(ctx context.Context, taskID uuid.UUID) (deletedEntries, deactivated int64, err error)
}

// ReminderSummary is the result of one reminders run.
type ReminderSummary struct {
	OK                bool `json:"ok"`
	ProcessedSettings int  `json:"processed_settings"`
	ProcessedQueue    int  `json:"processed_queue"`
}

// OutboxOptions selects what an outbox run processes.
type OutboxOptions struct {
	Limit  int
	Emails bool
	SMS    bool
}

// OutboxSummary is the result of one outbox run.
type OutboxSummary struct {
	OK    bool          `json:"ok"`
	Email outbox.Counts `json:"email"`
	SMS   outbox.Counts `json:"sms"`
}

// CleanupResult reports a bulk cleanup for one task.
type CleanupResult struct {
	TaskID              uuid.UUID `json:"task_id"`
	DeletedEntries      int64     `json:"deleted_entries"`
	DeactivatedSettings int64     `json:"deactivated_settings"`
}

// Engine runs the reminder pipeline.
type Engine struct {
	evaluator SettingsEvaluator
	queue     QueueProcessor
	outbox    OutboxProcessor
	store     Store
	now       func() time.Time
	logger    *zap.Logger
}

func New(evaluator SettingsEvaluator, queue QueueProcessor, outboxProc OutboxProcessor, store Store, logger *zap.Logger) *Engine {
	return &Engine{
		evaluator: evaluator,
		queue:     queue,
		outbox:    outboxProc,
		store:     store,
		now:       time.Now,
		logger:    logger,
	}
}

// RunReminders evaluates settings and then drains the due queue. A queue
// failure does not hide the settings count.
func (e *Engine) RunReminders(ctx context.Context, limit int) (*ReminderSummary, error) {
	start := time.Now()
	defer func() { metrics.RecordRun(JobReminders, time.Since(start)) }()

	now := e.now().UTC()
	summary := &ReminderSummary{}

	settings, err := e.evaluator.Run(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("evaluate settings: %w", err)
	}
	summary.ProcessedSettings = settings

	processed, err := e.queue.Process(ctx, now, limit)
	if err != nil {
		return summary, fmt.Errorf("process queue: %w", err)
	}
	summary.ProcessedQueue = processed
	summary.OK = true

	e.logger.Info("reminder run complete",
		zap.Int("processed_settings", summary.ProcessedSettings),
		zap.Int("processed_queue", summary.ProcessedQueue),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// RunOutbox drains the email and SMS outboxes that opts enables.
func (e *Engine) RunOutbox(ctx context.Context, opts OutboxOptions) (*OutboxSummary, error) {
	start := time.Now()
	defer func() { metrics.RecordRun(JobOutbox, time.Since(start)) }()

	summary := &OutboxSummary{}
	if opts.Emails {
		counts, err := e.outbox.Process(ctx, db.OutboxEmail, opts.Limit)
		if err != nil {
			return summary, err
		}
		summary.Email = counts
	}
	if opts.SMS {
		counts, err := e.outbox.Process(ctx, db.OutboxSMS, opts.Limit)
		if err != nil {
			return summary, err
		}
		summary.SMS = counts
	}
	summary.OK = true
	return summary, nil
}

// PendingCount is the number of due but undelivered reminders for a user.
func (e *Engine) PendingCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := e.store.CountPendingForUser(ctx, userID, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("count pending reminders: %w", err)
	}
	return n, nil
}

// CleanupTask deletes unsent queue entries and deactivates settings for a
// task that was completed or removed.
func (e *Engine) CleanupTask(ctx context.Context, taskID uuid.UUID) (*CleanupResult, error) {
	deleted, deactivated, err := e.store.CleanupTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("cleanup task reminders: %w", err)
	}

	e.logger.Info("task reminders cleaned up",
		zap.String("task_id", taskID.String()),
		zap.Int64("deleted_entries", deleted),
		zap.Int64("deactivated_settings", deactivated),
	)
	return &CleanupResult{TaskID: taskID, DeletedEntries: deleted, DeactivatedSettings: deactivated}, nil
}

// Tick is a job request carried by the non-HTTP triggers.
type Tick struct {
	Job    string `json:"job"`
	Limit  int    `json:"limit,omitempty"`
	Emails *bool  `json:"emails,omitempty"`
	SMS    *bool  `json:"sms,omitempty"`
}

// OutboxOptions resolves the channel flags; absent flags mean enabled.
func (t Tick) OutboxOptions() OutboxOptions {
	return OutboxOptions{
		Limit:  t.Limit,
		Emails: t.Emails == nil || *t.Emails,
		SMS:    t.SMS == nil || *t.SMS,
	}
}

// Dispatch runs the job a tick names and returns its summary.
func (e *Engine) Dispatch(ctx context.Context, t Tick) (any, error) {
	switch t.Job {
	case JobReminders, "":
		return e.RunReminders(ctx, t.Limit)
	case JobOutbox:
		return e.RunOutbox(ctx, t.OutboxOptions())
	default:
		return nil, fmt.Errorf("unknown job %q", t.Job)
	}
}
