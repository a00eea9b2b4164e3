// Package audit appends delivery attempts to reminder_logs. Recording never
// fails the caller: a lost audit row is logged and the run continues.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/sns"
)

// Store persists audit rows.
type Store interface {
	InsertReminderLog(ctx context.Context, log *db.ReminderLog) error
}

// Mirror receives failed entries, e.g. an SNS alert topic.
type Mirror interface {
	PublishAlert(ctx context.Context, alert sns.Alert) (string, error)
}

// Entry is one delivery attempt. A zero TaskID or UserID is stored as NULL.
type Entry struct {
	TaskID   uuid.UUID
	UserID   uuid.UUID
	Channel  string
	Status   string
	Severity string
	Message  string
	Error    string
	Snapshot any
}

// Recorder writes entries to the store and mirrors failures.
type Recorder struct {
	store  Store
	mirror Mirror
	logger *zap.Logger
}

// New returns a Recorder. mirror may be nil.
func New(store Store, mirror Mirror, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, mirror: mirror, logger: logger}
}

// Record appends e and returns nothing; storage errors are logged.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	row := &db.ReminderLog{
		Channel:  e.Channel,
		Status:   e.Status,
		Severity: e.Severity,
		Message:  e.Message,
	}
	if e.TaskID != uuid.Nil {
		id := e.TaskID
		row.TaskID = &id
	}
	if e.UserID != uuid.Nil {
		id := e.UserID
		row.UserID = &id
	}
	if e.Error != "" {
		msg := e.Error
		row.Error = &msg
	}
	if e.Snapshot != nil {
		if b, err := json.Marshal(e.Snapshot); err == nil {
			row.Snapshot = b
		} else {
			r.logger.Warn("audit snapshot not serializable", zap.Error(err))
		}
	}

	if e.Channel != db.ChannelSettings {
		metrics.RecordDelivery(e.Channel, e.Status)
	}

	if err := r.store.InsertReminderLog(ctx, row); err != nil {
		r.logger.Error("failed to write reminder log",
			zap.String("task_id", e.TaskID.String()),
			zap.String("user_id", e.UserID.String()),
			zap.String("channel", e.Channel),
			zap.String("status", e.Status),
			zap.Error(err),
		)
	}

	if r.mirror != nil && e.Status == db.LogFailed {
		r.publish(ctx, e)
	}
}

func (r *Recorder) publish(ctx context.Context, e Entry) {
	alert := sns.Alert{
		Channel:  e.Channel,
		Status:   e.Status,
		Severity: e.Severity,
		Message:  e.Message,
		Error:    e.Error,
	}
	if e.TaskID != uuid.Nil {
		alert.TaskID = e.TaskID.String()
	}
	if e.UserID != uuid.Nil {
		alert.UserID = e.UserID.String()
	}
	if _, err := r.mirror.PublishAlert(ctx, alert); err != nil {
		r.logger.Warn("failed to publish delivery alert", zap.Error(err))
	}
}
