package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/remindr/internal/timeutil"
)

// Task is the read-only view of a task owned by the project service.
// Due fields arrive as text because the owning service stores them loosely.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	TaskType    string     `json:"task_type"`
	Priority    string     `json:"priority"`
	DueDate     *string    `json:"due_date,omitempty"`
	DueAt       *string    `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	AssignedBy  *uuid.UUID `json:"assigned_by,omitempty"`
}

// Due returns due_at when parseable, then due_date, else nil.
func (t *Task) Due() *time.Time {
	if due := timeutil.ParseTimestampPtr(t.DueAt); due != nil {
		return due
	}
	return timeutil.ParseTimestampPtr(t.DueDate)
}

// IsRecurring reports whether the task repeats.
func (t *Task) IsRecurring() bool {
	return t.TaskType == TaskTypeRecurring
}

// Task types
const (
	TaskTypeOneTime   = "one_time"
	TaskTypeRecurring = "recurring"
)

// Task status values the engine cares about
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Profile carries a recipient's contact details.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
}

// SettingKey is the primary key of a reminder setting. The zero key sorts
// before every setting.
type SettingKey struct {
	TaskID uuid.UUID
	UserID uuid.UUID
}

// ReminderSetting is one (task, user) reminder subscription, joined with its task.
type ReminderSetting struct {
	TaskID              uuid.UUID  `json:"task_id"`
	UserID              uuid.UUID  `json:"user_id"`
	Active              bool       `json:"active"`
	StartMode           string     `json:"start_mode"`
	RepeatIntervalUnit  *string    `json:"repeat_interval_unit,omitempty"`
	RepeatIntervalValue *int       `json:"repeat_interval_value,omitempty"`
	RepeatHours         *int       `json:"repeat_hours,omitempty"`
	Timezone            string     `json:"timezone"`
	QuietStart          string     `json:"quiet_start"`
	QuietEnd            string     `json:"quiet_end"`
	EscalateAfter       int        `json:"escalate_after"`
	ArmedAt             *time.Time `json:"armed_at,omitempty"`
	LastSentAt          *time.Time `json:"last_sent_at,omitempty"`
	NextFireAt          *time.Time `json:"next_fire_at,omitempty"`
	MutedBy             *uuid.UUID `json:"muted_by,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Task Task `json:"task"`
}

// Start modes
const (
	StartOnCreate   = "on_create"
	StartOnUpcoming = "on_upcoming"
	StartOnOverdue  = "on_overdue"
)

// UserReminderPreference holds the raw per-task-type configs for one user.
type UserReminderPreference struct {
	UserID          uuid.UUID       `json:"user_id"`
	OneTimeConfig   json.RawMessage `json:"one_time_config"`
	RecurringConfig json.RawMessage `json:"recurring_config"`
}

// QueueEntry is one scheduled reminder in task_reminders, joined with its task.
type QueueEntry struct {
	ID          uuid.UUID  `json:"id"`
	TaskID      uuid.UUID  `json:"task_id"`
	UserID      uuid.UUID  `json:"user_id"`
	Message     string     `json:"message"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Sent        bool       `json:"sent"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	Task Task `json:"task"`
}

// ReminderLog is an append-only audit row for one delivery attempt.
type ReminderLog struct {
	ID        uuid.UUID       `json:"id"`
	TaskID    *uuid.UUID      `json:"task_id,omitempty"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	Channel   string          `json:"channel"`
	Status    string          `json:"status"`
	Severity  string          `json:"severity"`
	Message   string          `json:"message"`
	Error     *string         `json:"error,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Log channels
const (
	ChannelPush     = "push"
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelSettings = "settings"
)

// Log statuses
const (
	LogSuccess = "success"
	LogSkipped = "skipped"
	LogFailed  = "failed"
)

// Notification is an in-app inbox row.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Priority  string     `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
}

// NotificationTypeReminder marks inbox rows produced by this engine.
const NotificationTypeReminder = "task_reminder"

// OutboxKind selects the backlog table an OutboxMessage lives in.
type OutboxKind string

const (
	OutboxEmail OutboxKind = "email"
	OutboxSMS   OutboxKind = "sms"
)

// OutboxMessage is a pending unit of work for an external channel.
// Subject is empty for SMS.
type OutboxMessage struct {
	ID             uuid.UUID  `json:"id"`
	Kind           OutboxKind `json:"kind"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty"`
	Destination    string     `json:"destination"`
	Subject        string     `json:"subject,omitempty"`
	Body           string     `json:"body"`
	Status         string     `json:"status"`
	Error          *string    `json:"error,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Outbox status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusFailed     = "failed"
)
