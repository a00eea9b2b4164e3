package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository handles database operations for reminder settings, queue,
// logs, outbox and the read-only task/profile views.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new reminder repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Health pings the underlying pool.
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// taskColumns selects a tasks row aliased as t; scan with taskTargets.
const taskColumns = `
	t.id, COALESCE(t.title, ''), COALESCE(t.status, ''), COALESCE(t.task_type, ''),
	COALESCE(t.priority, ''), t.due_date::text, t.due_at::text, t.completed_at,
	t.assigned_to, t.assigned_by`

func taskTargets(t *Task) []any {
	return []any{
		&t.ID, &t.Title, &t.Status, &t.TaskType,
		&t.Priority, &t.DueDate, &t.DueAt, &t.CompletedAt,
		&t.AssignedTo, &t.AssignedBy,
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// ListActiveSettings returns one page of active, unmuted settings joined with
// their task, in primary key order starting after the given key.
func (r *Repository) ListActiveSettings(ctx context.Context, after SettingKey, limit int) ([]*ReminderSetting, error) {
	query := `
		SELECT
			s.task_id, s.user_id, s.active, s.start_mode,
			s.repeat_interval_unit, s.repeat_interval_value, s.repeat_hours,
			COALESCE(s.timezone, ''),
			COALESCE(s.quiet_hours->>'start', ''), COALESCE(s.quiet_hours->>'end', ''),
			COALESCE(s.escalate_after, 0),
			s.armed_at, s.last_sent_at, s.next_fire_at, s.muted_by, s.updated_at,
	` + taskColumns + `
		FROM task_reminder_settings s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.active = TRUE AND s.muted_by IS NULL
		  AND (s.task_id, s.user_id) > ($1, $2)
		ORDER BY s.task_id, s.user_id
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, after.TaskID, after.UserID, limit)
	if err != nil {
		r.logger.Error("failed to list reminder settings", zap.Error(err))
		return nil, fmt.Errorf("query reminder settings: %w", err)
	}
	defer rows.Close()

	var settings []*ReminderSetting
	for rows.Next() {
		var s ReminderSetting
		targets := []any{
			&s.TaskID, &s.UserID, &s.Active, &s.StartMode,
			&s.RepeatIntervalUnit, &s.RepeatIntervalValue, &s.RepeatHours,
			&s.Timezone,
			&s.QuietStart, &s.QuietEnd,
			&s.EscalateAfter,
			&s.ArmedAt, &s.LastSentAt, &s.NextFireAt, &s.MutedBy, &s.UpdatedAt,
		}
		if err := rows.Scan(append(targets, taskTargets(&s.Task)...)...); err != nil {
			return nil, fmt.Errorf("scan reminder setting: %w", err)
		}
		settings = append(settings, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder settings: %w", err)
	}

	return settings, nil
}

// ArmSetting records the first time a setting passed its start condition.
// It never overwrites an existing armed_at.
func (r *Repository) ArmSetting(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE task_reminder_settings
		SET armed_at = $3, updated_at = $3
		WHERE task_id = $1 AND user_id = $2 AND armed_at IS NULL
	`

	if _, err := r.db.Pool().Exec(ctx, query, taskID, userID, at); err != nil {
		return fmt.Errorf("arm reminder setting: %w", err)
	}
	return nil
}

// SetNextFireAt updates only the visible next fire time.
func (r *Repository) SetNextFireAt(ctx context.Context, taskID, userID uuid.UUID, next time.Time) error {
	query := `
		UPDATE task_reminder_settings
		SET next_fire_at = $3, updated_at = NOW()
		WHERE task_id = $1 AND user_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, taskID, userID, next)
	if err != nil {
		return fmt.Errorf("update next_fire_at: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("reminder setting %s/%s: %w", taskID, userID, ErrNotFound)
	}
	return nil
}

// MarkSettingSent stores a completed send and the following fire time.
func (r *Repository) MarkSettingSent(ctx context.Context, taskID, userID uuid.UUID, sentAt, next time.Time) error {
	query := `
		UPDATE task_reminder_settings
		SET last_sent_at = $3, next_fire_at = $4, updated_at = $3
		WHERE task_id = $1 AND user_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, taskID, userID, sentAt, next)
	if err != nil {
		return fmt.Errorf("mark reminder setting sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("reminder setting %s/%s: %w", taskID, userID, ErrNotFound)
	}
	return nil
}

// GetPreferences loads preference rows for the given users, keyed by user id.
// Users without a row are absent from the map.
func (r *Repository) GetPreferences(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*UserReminderPreference, error) {
	prefs := make(map[uuid.UUID]*UserReminderPreference, len(userIDs))
	if len(userIDs) == 0 {
		return prefs, nil
	}

	query := `
		SELECT user_id, COALESCE(one_time_config, 'null'::jsonb), COALESCE(recurring_config, 'null'::jsonb)
		FROM user_reminder_preferences
		WHERE user_id = ANY($1::uuid[])
	`

	rows, err := r.db.Pool().Query(ctx, query, uuidStrings(userIDs))
	if err != nil {
		return nil, fmt.Errorf("query reminder preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p UserReminderPreference
		if err := rows.Scan(&p.UserID, &p.OneTimeConfig, &p.RecurringConfig); err != nil {
			return nil, fmt.Errorf("scan reminder preference: %w", err)
		}
		prefs[p.UserID] = &p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder preferences: %w", err)
	}

	return prefs, nil
}

// GetProfiles loads contact profiles in one query, keyed by user id.
func (r *Repository) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Profile, error) {
	profiles := make(map[uuid.UUID]*Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	query := `
		SELECT id, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM profiles
		WHERE id = ANY($1::uuid[])
	`

	rows, err := r.db.Pool().Query(ctx, query, uuidStrings(ids))
	if err != nil {
		r.logger.Error("failed to load profiles", zap.Error(err), zap.Int("count", len(ids)))
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles[p.ID] = &p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

// CleanupTask removes unsent queue entries and deactivates settings for a
// completed or removed task in one transaction.
func (r *Repository) CleanupTask(ctx context.Context, taskID uuid.UUID) (deletedEntries, deactivated int64, err error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleted, err := tx.Exec(ctx, `DELETE FROM task_reminders WHERE task_id = $1 AND sent = FALSE`, taskID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete queue entries: %w", err)
	}

	updated, err := tx.Exec(ctx, `
		UPDATE task_reminder_settings
		SET active = FALSE, next_fire_at = NULL, updated_at = NOW()
		WHERE task_id = $1 AND active = TRUE
	`, taskID)
	if err != nil {
		return 0, 0, fmt.Errorf("deactivate settings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("task reminders cleaned up",
		zap.String("task_id", taskID.String()),
		zap.Int64("deleted_entries", deleted.RowsAffected()),
		zap.Int64("deactivated_settings", updated.RowsAffected()),
	)

	return deleted.RowsAffected(), updated.RowsAffected(), nil
}
