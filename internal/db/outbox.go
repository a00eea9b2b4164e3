package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type outboxTable struct {
	name        string
	destination string
	subject     string
	body        string
}

// Table and column names are fixed per kind and never come from input.
var outboxTables = map[OutboxKind]outboxTable{
	OutboxEmail: {name: "email_outbox", destination: "to_email", subject: "COALESCE(subject, '')", body: "body"},
	OutboxSMS:   {name: "sms_outbox", destination: "to_phone", subject: "''", body: "message"},
}

func tableFor(kind OutboxKind) (outboxTable, error) {
	t, ok := outboxTables[kind]
	if !ok {
		return outboxTable{}, fmt.Errorf("unknown outbox kind %q", kind)
	}
	return t, nil
}

// ListPendingOutbox returns up to limit pending rows of kind, oldest first.
func (r *Repository) ListPendingOutbox(ctx context.Context, kind OutboxKind, limit int) ([]*OutboxMessage, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, notification_id, COALESCE(%s, ''), %s, COALESCE(%s, ''), status, error, sent_at, created_at
		FROM %s
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, t.destination, t.subject, t.body, t.name)

	rows, err := r.db.Pool().Query(ctx, query, StatusPending, limit)
	if err != nil {
		r.logger.Error("failed to list outbox", zap.Error(err), zap.String("kind", string(kind)))
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		m := OutboxMessage{Kind: kind}
		if err := rows.Scan(
			&m.ID,
			&m.NotificationID,
			&m.Destination,
			&m.Subject,
			&m.Body,
			&m.Status,
			&m.Error,
			&m.SentAt,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.name, err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}

	return messages, nil
}

// ClaimOutbox moves a row from pending to processing. It returns false when
// another processor claimed the row first.
func (r *Repository) ClaimOutbox(ctx context.Context, kind OutboxKind, id uuid.UUID) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %s SET status = $2 WHERE id = $1 AND status = $3`, t.name)

	result, err := r.db.Pool().Exec(ctx, query, id, StatusProcessing, StatusPending)
	if err != nil {
		return false, fmt.Errorf("claim %s row: %w", t.name, err)
	}
	return result.RowsAffected() == 1, nil
}

// FinalizeOutbox writes the terminal status of a claimed row.
func (r *Repository) FinalizeOutbox(ctx context.Context, kind OutboxKind, id uuid.UUID, status string, errMsg *string, sentAt *time.Time) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET status = $2, error = $3, sent_at = $4 WHERE id = $1`, t.name)

	result, err := r.db.Pool().Exec(ctx, query, id, status, errMsg, sentAt)
	if err != nil {
		return fmt.Errorf("finalize %s row: %w", t.name, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s row %s: %w", t.name, id, ErrNotFound)
	}
	return nil
}
