package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lalithlochan/remindr/internal/audit"
	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/notify"
	"github.com/lalithlochan/remindr/internal/timeutil"
)

const (
	DefaultConcurrency   = 8
	MaxConcurrency       = 16
	DefaultSettingsLimit = 1000
)

// Store is the persistence the evaluator needs.
type Store interface {
	QueueStore
	ListActiveSettings(ctx context.Context, after db.SettingKey, limit int) ([]*db.ReminderSetting, error)
	ArmSetting(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error
	SetNextFireAt(ctx context.Context, taskID, userID uuid.UUID, next time.Time) error
	MarkSettingSent(ctx context.Context, taskID, userID uuid.UUID, sentAt, next time.Time) error
	GetPreferences(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*db.UserReminderPreference, error)
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*db.Profile, error)
	CountReminderLogs(ctx context.Context, taskID, userID uuid.UUID, channel, severity string) (int, error)
}

// Notifier delivers evaluator reminders.
type Notifier interface {
	Push(ctx context.Context, p notify.Push) error
	Escalate(ctx context.Context, e notify.Escalation)
}

// EvaluatorConfig tunes an Evaluator. Limit is the page size used to walk
// the settings table.
type EvaluatorConfig struct {
	Concurrency int
	Limit       int
}

// Evaluator walks the active settings and fires, defers or delegates each one.
type Evaluator struct {
	store     Store
	notifier  Notifier
	audit     notify.Auditor
	scheduler *Scheduler
	config    EvaluatorConfig
	logger    *zap.Logger
}

func NewEvaluator(store Store, notifier Notifier, auditor notify.Auditor, logger *zap.Logger, cfg EvaluatorConfig) *Evaluator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSettingsLimit
	}

	return &Evaluator{
		store:     store,
		notifier:  notifier,
		audit:     auditor,
		scheduler: NewScheduler(store, logger),
		config:    cfg,
		logger:    logger,
	}
}

// Outcomes of evaluating one setting
const (
	OutcomeSkipped   = "skipped"
	OutcomeScheduled = "scheduled"
	OutcomeWaiting   = "waiting"
	OutcomeDeferred  = "deferred"
	OutcomeSent      = "sent"
	OutcomeError     = "error"
)

type runContext struct {
	now      time.Time
	prefs    map[uuid.UUID]*Preferences
	profiles map[uuid.UUID]*db.Profile
}

// Run evaluates every active setting once and returns how many were loaded.
// Settings are read a page at a time so no subset can crowd out the rest.
// Failures of single settings are logged and audited; only a failure to
// load a page is returned.
func (e *Evaluator) Run(ctx context.Context, now time.Time) (int, error) {
	var (
		after db.SettingKey
		total int
	)
	for {
		settings, err := e.store.ListActiveSettings(ctx, after, e.config.Limit)
		if err != nil {
			return total, fmt.Errorf("list active settings: %w", err)
		}
		if len(settings) == 0 {
			return total, nil
		}

		e.runPage(ctx, settings, now)
		total += len(settings)

		if len(settings) < e.config.Limit {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		last := settings[len(settings)-1]
		after = db.SettingKey{TaskID: last.TaskID, UserID: last.UserID}
	}
}

func (e *Evaluator) runPage(ctx context.Context, settings []*db.ReminderSetting, now time.Time) {
	rc := &runContext{now: now}
	rc.prefs = e.loadPreferences(ctx, settings)
	rc.profiles = e.loadProfiles(ctx, settings)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for _, s := range settings {
		g.Go(func() error {
			e.evaluateSafely(gctx, s, rc)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Evaluator) loadPreferences(ctx context.Context, settings []*db.ReminderSetting) map[uuid.UUID]*Preferences {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, s := range settings {
		if !seen[s.UserID] {
			seen[s.UserID] = true
			ids = append(ids, s.UserID)
		}
	}

	out := make(map[uuid.UUID]*Preferences)
	rows, err := e.store.GetPreferences(ctx, ids)
	if err != nil {
		e.logger.Warn("failed to load reminder preferences, using settings only", zap.Error(err))
		return out
	}
	for id, row := range rows {
		p := ParsePreferences(row)
		for _, w := range p.Warnings {
			e.logger.Warn("invalid reminder preference entry", zap.String("user_id", id.String()), zap.String("detail", w))
		}
		out[id] = p
	}
	return out
}

func (e *Evaluator) loadProfiles(ctx context.Context, settings []*db.ReminderSetting) map[uuid.UUID]*db.Profile {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, s := range settings {
		add(s.UserID)
		if s.Task.AssignedBy != nil {
			add(*s.Task.AssignedBy)
		}
	}

	profiles, err := e.store.GetProfiles(ctx, ids)
	if err != nil {
		e.logger.Warn("failed to load profiles, escalations will skip email and sms", zap.Error(err))
		return map[uuid.UUID]*db.Profile{}
	}
	return profiles
}

func (e *Evaluator) evaluateSafely(ctx context.Context, s *db.ReminderSetting, rc *runContext) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		var outcome string
		outcome, err = e.evaluate(ctx, s, rc)
		if err == nil {
			metrics.RecordSettingEvaluated(outcome)
		}
	}()
	if err == nil {
		return
	}

	metrics.RecordSettingEvaluated(OutcomeError)
	e.logger.Error("skipping reminder setting due to error",
		zap.String("task_id", s.TaskID.String()),
		zap.String("user_id", s.UserID.String()),
		zap.Error(err),
	)
	e.audit.Record(ctx, audit.Entry{
		TaskID:   s.TaskID,
		UserID:   s.UserID,
		Channel:  db.ChannelSettings,
		Status:   db.LogFailed,
		Severity: string(SeverityInProgress),
		Message:  "Error processing reminder setting",
		Error:    err.Error(),
		Snapshot: map[string]any{"setting": s},
	})
}

// State is the lifecycle position of a setting.
type State string

const (
	StateDeactivated State = "deactivated"
	StateMuted       State = "muted"
	StateNotStarted  State = "not_started"
	StateArmed       State = "armed"
)

// StateOf derives the lifecycle state. A setting that already sent once
// counts as armed even if it predates armed_at.
func StateOf(s *db.ReminderSetting) State {
	switch {
	case !s.Active:
		return StateDeactivated
	case s.MutedBy != nil:
		return StateMuted
	case s.ArmedAt == nil && s.LastSentAt == nil:
		return StateNotStarted
	default:
		return StateArmed
	}
}

// StartConditionMet reports whether status satisfies the setting's start mode.
func StartConditionMet(mode string, status Status) bool {
	switch mode {
	case db.StartOnUpcoming:
		return status == StatusUpcoming
	case db.StartOnOverdue:
		return status == StatusOverdue
	default:
		return true
	}
}

func (e *Evaluator) evaluate(ctx context.Context, s *db.ReminderSetting, rc *runContext) (string, error) {
	now := rc.now
	task := &s.Task
	status := ResolveStatus(task, now)
	if status == StatusDone {
		return OutcomeSkipped, nil
	}

	switch StateOf(s) {
	case StateDeactivated, StateMuted:
		return OutcomeSkipped, nil
	case StateNotStarted:
		if !StartConditionMet(s.StartMode, status) {
			return OutcomeSkipped, nil
		}
		if err := e.store.ArmSetting(ctx, s.TaskID, s.UserID, now); err != nil {
			return "", err
		}
		armed := now
		s.ArmedAt = &armed
	}

	loc := timeutil.LoadLocation(s.Timezone)
	quiet := timeutil.ParseQuietWindow(s.QuietStart, s.QuietEnd)

	if handled, err := e.delegate(ctx, s, rc, status, loc, quiet); err != nil || handled {
		return OutcomeScheduled, err
	}

	next := e.intervalFunc(s)
	if s.LastSentAt != nil && now.Before(next(*s.LastSentAt)) {
		return OutcomeWaiting, nil
	}

	localNow := now.In(loc)
	if timeutil.IsWithinQuietWindow(localNow, quiet) {
		deferred := timeutil.NextTimeAfterQuietWindow(localNow, quiet).UTC()
		if err := e.store.SetNextFireAt(ctx, s.TaskID, s.UserID, deferred); err != nil {
			return "", err
		}
		return OutcomeDeferred, nil
	}

	body := NotificationBody(task.Due(), loc)
	snapshot := map[string]any{"setting": s}
	err := e.notifier.Push(ctx, notify.Push{
		UserID:   s.UserID,
		TaskID:   s.TaskID,
		Title:    NotificationTitle(status, task.Title),
		Body:     body,
		Severity: string(status),
		Snapshot: snapshot,
	})
	if err != nil {
		// push/failed is already audited; leave last_sent_at so the next run retries
		e.logger.Warn("in-app reminder failed", zap.String("task_id", s.TaskID.String()), zap.Error(err))
		return OutcomeError, nil
	}

	if status == StatusOverdue {
		e.notifier.Escalate(ctx, notify.Escalation{
			Task:       task,
			AssigneeID: s.UserID,
			Profiles:   rc.profiles,
			Severity:   string(status),
			Message:    body,
			Snapshot:   snapshot,
		})
		e.escalateToAssigner(ctx, s)
	}

	if err := e.store.MarkSettingSent(ctx, s.TaskID, s.UserID, now, next(now)); err != nil {
		return "", err
	}
	return OutcomeSent, nil
}

// delegate hands the setting to the preference scheduler when the user has
// an enabled rule for the task's current status.
func (e *Evaluator) delegate(ctx context.Context, s *db.ReminderSetting, rc *runContext, status Status, loc *time.Location, quiet timeutil.QuietWindow) (bool, error) {
	prefs := rc.prefs[s.UserID]
	if prefs == nil {
		return false, nil
	}
	rule, ok := prefs.Lookup(s.Task.IsRecurring(), PreferenceKey(status))
	if !ok {
		return false, nil
	}

	res, err := e.scheduler.Schedule(ctx, ScheduleRequest{
		TaskID:   s.TaskID,
		UserID:   s.UserID,
		Title:    s.Task.Title,
		Now:      rc.now,
		Location: loc,
		Rule:     rule,
		Quiet:    quiet,
	})
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}
	if !res.Capped {
		if err := e.store.SetNextFireAt(ctx, s.TaskID, s.UserID, res.Next); err != nil {
			return false, err
		}
	}
	return true, nil
}

// intervalFunc resolves the repeat cadence: unit/value when valid, else
// repeat_hours, else 24h.
func (e *Evaluator) intervalFunc(s *db.ReminderSetting) func(time.Time) time.Time {
	var unitStr string
	if s.RepeatIntervalUnit != nil {
		unitStr = *s.RepeatIntervalUnit
	}
	var value, hours int
	if s.RepeatIntervalValue != nil {
		value = *s.RepeatIntervalValue
	}
	if s.RepeatHours != nil {
		hours = *s.RepeatHours
	}

	if unit, ok := timeutil.ParseUnit(unitStr); ok && value > 0 {
		if hours > 0 && !(unit == timeutil.UnitHours && value == hours) {
			e.logger.Warn("migration note: repeat_hours disagrees with repeat interval, using interval",
				zap.String("task_id", s.TaskID.String()),
				zap.String("user_id", s.UserID.String()),
				zap.String("unit", unitStr),
				zap.Int("value", value),
				zap.Int("repeat_hours", hours),
			)
		}
		return func(base time.Time) time.Time { return timeutil.AddInterval(base, unit, value) }
	}
	if hours > 0 {
		return func(base time.Time) time.Time { return base.Add(time.Duration(hours) * time.Hour) }
	}
	return func(base time.Time) time.Time { return base.Add(timeutil.DefaultInterval) }
}

// escalateToAssigner sends one extra high-priority in-app notice to the
// assigner once escalate_after overdue pushes have gone out.
func (e *Evaluator) escalateToAssigner(ctx context.Context, s *db.ReminderSetting) {
	if s.EscalateAfter <= 0 || s.Task.AssignedBy == nil || *s.Task.AssignedBy == s.UserID {
		return
	}

	count, err := e.store.CountReminderLogs(ctx, s.TaskID, s.UserID, db.ChannelPush, string(StatusOverdue))
	if err != nil {
		e.logger.Warn("failed to count overdue reminders", zap.String("task_id", s.TaskID.String()), zap.Error(err))
		return
	}
	if count < s.EscalateAfter {
		return
	}

	err = e.notifier.Push(ctx, notify.Push{
		UserID:     *s.Task.AssignedBy,
		TaskID:     s.TaskID,
		Title:      EscalationTitle(s.Task.Title, count),
		Body:       NotificationBody(s.Task.Due(), timeutil.LoadLocation(s.Timezone)),
		Priority:   notify.PriorityHigh,
		Severity:   string(SeverityOverdue),
		LogMessage: fmt.Sprintf("escalated after %d overdue reminders", count),
	})
	if err != nil {
		e.logger.Warn("assigner escalation failed", zap.String("task_id", s.TaskID.String()), zap.Error(err))
	}
}
