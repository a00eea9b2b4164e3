package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/timeutil"
)

// maxDayScan bounds both the specific-times lookahead and the max_per_day
// restarts to one week.
const maxDayScan = 7

// NextFromSpecificTimes returns the earliest configured clock time strictly
// after now on an allowed ISO weekday, deferred past quiet when it lands
// inside it. now's location is the user's zone. Nil when times is empty.
func NextFromSpecificTimes(now time.Time, times []timeutil.TimeOfDay, allowedDays []int, quiet *timeutil.QuietWindow) *time.Time {
	if len(times) == 0 {
		return nil
	}
	rule := Rule{DaysOfWeek: allowedDays}

	for offset := 0; offset <= maxDayScan; offset++ {
		day := now.AddDate(0, 0, offset)
		if !rule.AllowsDay(timeutil.ISOWeekday(day)) {
			continue
		}
		for _, tod := range times {
			candidate := tod.On(day)
			if !candidate.After(now) {
				continue
			}
			return deferQuiet(candidate, quiet)
		}
	}
	return nil
}

// NextFromRepeatHours returns now + hours deferred past quiet, nil for
// non-positive hours.
func NextFromRepeatHours(now time.Time, hours int, quiet *timeutil.QuietWindow) *time.Time {
	if hours <= 0 {
		return nil
	}
	return deferQuiet(now.Add(time.Duration(hours)*time.Hour), quiet)
}

func deferQuiet(t time.Time, quiet *timeutil.QuietWindow) *time.Time {
	if quiet != nil && timeutil.IsWithinQuietWindow(t, *quiet) {
		t = timeutil.NextTimeAfterQuietWindow(t, *quiet)
	}
	return &t
}

// QueueStore is the queue access the scheduler needs.
type QueueStore interface {
	HasUnsentFutureEntry(ctx context.Context, taskID, userID uuid.UUID, now time.Time) (bool, error)
	CountEntriesBetween(ctx context.Context, taskID, userID uuid.UUID, from, to time.Time) (int, error)
	InsertQueueEntry(ctx context.Context, entry *db.QueueEntry) error
}

// ScheduleRequest asks for the next preference-driven reminder of one setting.
type ScheduleRequest struct {
	TaskID   uuid.UUID
	UserID   uuid.UUID
	Title    string
	Now      time.Time
	Location *time.Location
	Rule     Rule
	// Quiet is the setting's own window, used when the rule has none.
	Quiet timeutil.QuietWindow
}

// ScheduleResult reports what Schedule decided.
type ScheduleResult struct {
	Next     time.Time
	Inserted bool
	// Capped means every day in the lookahead already holds max_per_day entries.
	Capped bool
}

// Scheduler turns a preference rule into at most one pending queue entry.
type Scheduler struct {
	store  QueueStore
	logger *zap.Logger
}

func NewScheduler(store QueueStore, logger *zap.Logger) *Scheduler {
	return &Scheduler{store: store, logger: logger}
}

// Schedule computes the next fire time from the rule's specific times,
// falling back to repeat_every_hours, and inserts a queue entry unless an
// unsent future one already exists. It returns nil when the rule yields no
// time, so the caller can use the legacy interval path.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	quiet := req.Rule.Quiet
	if quiet == nil {
		quiet = &req.Quiet
	}

	local := req.Now.In(loc)
	next := s.nextFrom(local, req.Rule, quiet)
	if next == nil {
		return nil, nil
	}

	exists, err := s.store.HasUnsentFutureEntry(ctx, req.TaskID, req.UserID, req.Now)
	if err != nil {
		return nil, fmt.Errorf("check pending entry: %w", err)
	}
	if exists {
		return &ScheduleResult{Next: next.UTC()}, nil
	}

	if req.Rule.MaxPerDay > 0 {
		next, err = s.applyDailyCap(ctx, req, *next, quiet)
		if err != nil {
			return nil, err
		}
		if next == nil {
			s.logger.Warn("max_per_day reached for the whole lookahead",
				zap.String("task_id", req.TaskID.String()),
				zap.String("user_id", req.UserID.String()),
				zap.Int("max_per_day", req.Rule.MaxPerDay),
			)
			return &ScheduleResult{Capped: true}, nil
		}
	}

	entry := &db.QueueEntry{
		TaskID:      req.TaskID,
		UserID:      req.UserID,
		Message:     QueueMessage(req.Title),
		ScheduledAt: next.UTC(),
	}
	if err := s.store.InsertQueueEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert queue entry: %w", err)
	}
	metrics.RecordQueueEntryScheduled()

	return &ScheduleResult{Next: entry.ScheduledAt, Inserted: true}, nil
}

func (s *Scheduler) nextFrom(local time.Time, rule Rule, quiet *timeutil.QuietWindow) *time.Time {
	if next := NextFromSpecificTimes(local, rule.SpecificTimes, rule.DaysOfWeek, quiet); next != nil {
		return next
	}
	return NextFromRepeatHours(local, rule.RepeatEveryHours, quiet)
}

// applyDailyCap moves candidate to a later local day while its day already
// holds MaxPerDay entries.
func (s *Scheduler) applyDailyCap(ctx context.Context, req ScheduleRequest, candidate time.Time, quiet *timeutil.QuietWindow) (*time.Time, error) {
	next := &candidate
	for i := 0; i < maxDayScan && next != nil; i++ {
		dayStart := timeutil.StartOfDay(*next)
		dayEnd := dayStart.AddDate(0, 0, 1)

		n, err := s.store.CountEntriesBetween(ctx, req.TaskID, req.UserID, dayStart.UTC(), dayEnd.UTC())
		if err != nil {
			return nil, fmt.Errorf("count daily entries: %w", err)
		}
		if n < req.Rule.MaxPerDay {
			return next, nil
		}

		// start over from the next local midnight; specific times are strictly after, so step back 1ns
		if len(req.Rule.SpecificTimes) > 0 {
			next = NextFromSpecificTimes(dayEnd.Add(-time.Nanosecond), req.Rule.SpecificTimes, req.Rule.DaysOfWeek, quiet)
		} else {
			next = NextFromRepeatHours(dayEnd, req.Rule.RepeatEveryHours, quiet)
		}
	}
	return nil, nil
}
