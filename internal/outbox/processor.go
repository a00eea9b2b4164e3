// Package outbox sends the email_outbox and sms_outbox backlogs written by
// other services. Rows are claimed with a conditional update before any
// provider call, so overlapping runs never send the same row twice.
package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/provider"
)

const (
	DefaultBatchSize = 50
	MaxBatchSize     = 500
)

const (
	errSendFailed   = "send_failed"
	footerSignature = "Remindr task reminders"
)

// Store is the outbox table access.
type Store interface {
	ListPendingOutbox(ctx context.Context, kind db.OutboxKind, limit int) ([]*db.OutboxMessage, error)
	ClaimOutbox(ctx context.Context, kind db.OutboxKind, id uuid.UUID) (bool, error)
	FinalizeOutbox(ctx context.Context, kind db.OutboxKind, id uuid.UUID, status string, errMsg *string, sentAt *time.Time) error
}

// Counts summarizes one batch.
type Counts struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Processor drains one outbox kind per call.
type Processor struct {
	store   Store
	email   provider.EmailSender
	sms     provider.SMSSender
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func NewProcessor(store Store, email provider.EmailSender, sms provider.SMSSender, timeout time.Duration, logger *zap.Logger) *Processor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Processor{
		store:   store,
		email:   email,
		sms:     sms,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// ClampBatch applies the default and upper bound to a requested batch size.
func ClampBatch(limit int) int {
	if limit <= 0 {
		return DefaultBatchSize
	}
	if limit > MaxBatchSize {
		return MaxBatchSize
	}
	return limit
}

// Process sends up to limit pending rows of kind. Only a failure to list
// the batch is returned; row failures are counted.
func (p *Processor) Process(ctx context.Context, kind db.OutboxKind, limit int) (Counts, error) {
	var counts Counts

	rows, err := p.store.ListPendingOutbox(ctx, kind, ClampBatch(limit))
	if err != nil {
		return counts, fmt.Errorf("list %s outbox: %w", kind, err)
	}
	counts.Scanned = len(rows)

	for _, row := range rows {
		status := p.processRow(ctx, kind, row)
		switch status {
		case db.StatusSent:
			counts.Sent++
		case db.StatusFailed:
			counts.Failed++
		default:
			counts.Skipped++
		}
		metrics.RecordOutboxProcessed(string(kind), status)
	}

	p.logger.Info("outbox batch processed",
		zap.String("kind", string(kind)),
		zap.Int("scanned", counts.Scanned),
		zap.Int("sent", counts.Sent),
		zap.Int("failed", counts.Failed),
		zap.Int("skipped", counts.Skipped),
	)
	return counts, nil
}

const statusLostClaim = "skipped"

func (p *Processor) processRow(ctx context.Context, kind db.OutboxKind, row *db.OutboxMessage) string {
	logger := p.logger.With(zap.String("kind", string(kind)), zap.String("id", row.ID.String()))

	claimed, err := p.store.ClaimOutbox(ctx, kind, row.ID)
	if err != nil {
		logger.Error("outbox claim failed", zap.Error(err))
		return statusLostClaim
	}
	if !claimed {
		logger.Debug("outbox row claimed by another run")
		return statusLostClaim
	}

	out := p.send(ctx, kind, row)
	if out.OK {
		sentAt := p.now().UTC()
		if err := p.store.FinalizeOutbox(ctx, kind, row.ID, db.StatusSent, nil, &sentAt); err != nil {
			logger.Error("failed to finalize sent outbox row", zap.Error(err))
		}
		return db.StatusSent
	}

	reason := out.Reason()
	if reason == "" {
		reason = errSendFailed
	}
	logger.Warn("outbox send failed", zap.String("reason", reason))
	if err := p.store.FinalizeOutbox(ctx, kind, row.ID, db.StatusFailed, &reason, nil); err != nil {
		logger.Error("failed to finalize failed outbox row", zap.Error(err))
	}
	return db.StatusFailed
}

func (p *Processor) send(ctx context.Context, kind db.OutboxKind, row *db.OutboxMessage) (out provider.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = provider.Failedf("%v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	switch kind {
	case db.OutboxEmail:
		return p.email.SendEmail(callCtx, provider.EmailMessage{
			To:      row.Destination,
			Subject: row.Subject,
			HTML:    AsHTML(row.Body),
			Text:    row.Body,
		})
	case db.OutboxSMS:
		to, ok := provider.NormalizePhone(row.Destination)
		if !ok {
			to = row.Destination
		}
		return p.sms.SendSMS(callCtx, provider.SMSMessage{To: to, Body: row.Body})
	default:
		return provider.Failedf("unknown outbox kind %q", kind)
	}
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\n", "<br/>",
)

// AsHTML wraps a plain text body in the reminder email layout.
func AsHTML(text string) string {
	safe := htmlEscaper.Replace(text)
	return `<div style="font-family: Arial, sans-serif; line-height:1.6">` + safe +
		`<br/><p style="color:#888">` + footerSignature + `</p></div>`
}
