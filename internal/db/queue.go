package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HasUnsentFutureEntry reports whether (task, user) already has an unsent
// entry scheduled after now.
func (r *Repository) HasUnsentFutureEntry(ctx context.Context, taskID, userID uuid.UUID, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM task_reminders
			WHERE task_id = $1 AND user_id = $2 AND sent = FALSE AND scheduled_at > $3
		)
	`

	var exists bool
	if err := r.db.Pool().QueryRow(ctx, query, taskID, userID, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("check unsent queue entry: %w", err)
	}
	return exists, nil
}

// CountEntriesBetween counts entries for (task, user) scheduled in [from, to).
func (r *Repository) CountEntriesBetween(ctx context.Context, taskID, userID uuid.UUID, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM task_reminders
		WHERE task_id = $1 AND user_id = $2 AND scheduled_at >= $3 AND scheduled_at < $4
	`

	var count int
	if err := r.db.Pool().QueryRow(ctx, query, taskID, userID, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queue entries: %w", err)
	}
	return count, nil
}

// InsertQueueEntry inserts a new unsent reminder.
func (r *Repository) InsertQueueEntry(ctx context.Context, entry *QueueEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO task_reminders (id, task_id, user_id, message, scheduled_at, sent)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.UserID,
		entry.Message,
		entry.ScheduledAt,
	).Scan(&entry.CreatedAt)

	if err != nil {
		r.logger.Error("failed to insert queue entry",
			zap.Error(err),
			zap.String("task_id", entry.TaskID.String()),
			zap.String("user_id", entry.UserID.String()),
		)
		return fmt.Errorf("insert queue entry: %w", err)
	}

	return nil
}

// ListDueEntries returns up to limit unsent entries scheduled at or before
// now, oldest first, joined with their task.
func (r *Repository) ListDueEntries(ctx context.Context, now time.Time, limit int) ([]*QueueEntry, error) {
	query := `
		SELECT q.id, q.task_id, q.user_id, COALESCE(q.message, ''), q.scheduled_at, q.sent, q.sent_at, q.created_at,
	` + taskColumns + `
		FROM task_reminders q
		JOIN tasks t ON t.id = q.task_id
		WHERE q.sent = FALSE AND q.scheduled_at <= $1
		ORDER BY q.scheduled_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("failed to list due queue entries", zap.Error(err))
		return nil, fmt.Errorf("query due queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*QueueEntry
	for rows.Next() {
		var e QueueEntry
		targets := []any{&e.ID, &e.TaskID, &e.UserID, &e.Message, &e.ScheduledAt, &e.Sent, &e.SentAt, &e.CreatedAt}
		if err := rows.Scan(append(targets, taskTargets(&e.Task)...)...); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue entries: %w", err)
	}

	return entries, nil
}

// MarkEntrySent flips sent once. It returns false when the entry was already sent.
func (r *Repository) MarkEntrySent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	query := `
		UPDATE task_reminders
		SET sent = TRUE, sent_at = $2
		WHERE id = $1 AND sent = FALSE
	`

	result, err := r.db.Pool().Exec(ctx, query, id, sentAt)
	if err != nil {
		return false, fmt.Errorf("mark queue entry sent: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// CountPendingForUser counts unsent entries already due for a user.
func (r *Repository) CountPendingForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM task_reminders
		WHERE user_id = $1 AND sent = FALSE AND scheduled_at <= $2
	`

	var count int
	if err := r.db.Pool().QueryRow(ctx, query, userID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending reminders: %w", err)
	}
	return count, nil
}
