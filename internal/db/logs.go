package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertReminderLog appends an audit row.
func (r *Repository) InsertReminderLog(ctx context.Context, log *ReminderLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	query := `
		INSERT INTO reminder_logs (id, task_id, user_id, channel, status, severity, message, error, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	var snapshot any
	if len(log.Snapshot) > 0 {
		snapshot = log.Snapshot
	}

	err := r.db.Pool().QueryRow(ctx, query,
		log.ID,
		log.TaskID,
		log.UserID,
		log.Channel,
		log.Status,
		log.Severity,
		log.Message,
		log.Error,
		snapshot,
	).Scan(&log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reminder log: %w", err)
	}
	return nil
}

// CountReminderLogs counts successful logs for (task, user) on channel with severity.
func (r *Repository) CountReminderLogs(ctx context.Context, taskID, userID uuid.UUID, channel, severity string) (int, error) {
	query := `
		SELECT COUNT(*) FROM reminder_logs
		WHERE task_id = $1 AND user_id = $2 AND channel = $3 AND severity = $4 AND status = 'success'
	`

	var count int
	if err := r.db.Pool().QueryRow(ctx, query, taskID, userID, channel, severity).Scan(&count); err != nil {
		return 0, fmt.Errorf("count reminder logs: %w", err)
	}
	return count, nil
}

// InsertNotification writes an in-app inbox row.
func (r *Repository) InsertNotification(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	query := `
		INSERT INTO notifications (id, user_id, task_id, type, title, message, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.TaskID,
		n.Type,
		n.Title,
		n.Message,
		n.Priority,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
