// Package reminder decides when (task, user) reminders fire: status
// resolution, per-user preference scheduling and the settings evaluator.
package reminder

import (
	"math"
	"time"

	"github.com/lalithlochan/remindr/internal/db"
)

// Status is the reminder-relevant state of a task at a point in time.
type Status string

const (
	StatusDone       Status = "done"
	StatusOverdue    Status = "overdue"
	StatusUpcoming   Status = "upcoming"
	StatusInProgress Status = "in_progress"
	StatusPending    Status = "pending"
)

// Severity is the coarse urgency bucket that gates delivery channels.
type Severity string

const (
	SeverityInProgress Severity = "in_progress"
	SeverityNearlyDue  Severity = "nearly_due"
	SeverityOverdue    Severity = "overdue"
)

const (
	// UpcomingWindow is how close a due time must be for a task to count as upcoming.
	UpcomingWindow = 24 * time.Hour

	// NearlyDueDays is the number of whole days remaining that still counts as nearly due.
	NearlyDueDays = 2
)

// ResolveStatus derives the task status used for start conditions and message text.
func ResolveStatus(task *db.Task, now time.Time) Status {
	if task.CompletedAt != nil {
		return StatusDone
	}

	due := task.Due()
	if due == nil {
		return mirror(task)
	}

	if now.After(*due) {
		return StatusOverdue
	}
	if due.Sub(now) <= UpcomingWindow {
		return StatusUpcoming
	}
	return mirror(task)
}

func mirror(task *db.Task) Status {
	if task.Status == db.TaskStatusInProgress {
		return StatusInProgress
	}
	return StatusPending
}

// SeverityFor buckets a task by time remaining: past due is overdue, fewer
// than NearlyDueDays+1 whole days left is nearly due, anything else in progress.
func SeverityFor(task *db.Task, now time.Time) Severity {
	due := task.Due()
	if due == nil {
		return SeverityInProgress
	}

	remaining := due.Sub(now)
	if remaining < 0 {
		return SeverityOverdue
	}

	days := math.Floor(remaining.Hours() / 24)
	if days <= NearlyDueDays {
		return SeverityNearlyDue
	}
	return SeverityInProgress
}

// PreferenceKey maps a status onto the severity key used by preference configs.
func PreferenceKey(s Status) Severity {
	switch s {
	case StatusUpcoming:
		return SeverityNearlyDue
	case StatusOverdue:
		return SeverityOverdue
	default:
		return SeverityInProgress
	}
}
