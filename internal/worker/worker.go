// Package worker runs engine jobs inside a long-lived process: on a fixed
// interval, or whenever a tick arrives on SQS.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/engine"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/sqs"
)

// Dispatcher runs a job tick.
type Dispatcher interface {
	Dispatch(ctx context.Context, t engine.Tick) (any, error)
}

// Ticker fires the reminders and outbox jobs every interval.
type Ticker struct {
	engine Dispatcher
	config Config
	logger *zap.Logger
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

func NewTicker(e Dispatcher, cfg Config, logger *zap.Logger) *Ticker {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	return &Ticker{
		engine: e,
		config: cfg,
		logger: logger,
	}
}

// Start blocks until ctx is cancelled.
func (w *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ticker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Ticker) runOnce(ctx context.Context) {
	for _, job := range []string{engine.JobReminders, engine.JobOutbox} {
		if _, err := w.engine.Dispatch(ctx, engine.Tick{Job: job, Limit: w.config.BatchSize}); err != nil {
			w.logger.Error("scheduled job failed", zap.String("job", job), zap.Error(err))
		}
	}
}

// Queue is the SQS consumer surface the tick consumer uses.
type Queue interface {
	ReceiveMessage(ctx context.Context) (*sqs.Message, string, error)
	DeleteMessage(ctx context.Context, receiptHandle string) error
	ChangeVisibility(ctx context.Context, receiptHandle string, seconds int32) error
}

// Retry delays for ticks whose job failed, by receive attempt
var retryDelays = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// TickConsumer long-polls SQS and dispatches each tick.
type TickConsumer struct {
	queue   Queue
	engine  Dispatcher
	logger  *zap.Logger
	backoff time.Duration
	failed  int
}

func NewTickConsumer(queue Queue, e Dispatcher, logger *zap.Logger) *TickConsumer {
	return &TickConsumer{
		queue:   queue,
		engine:  e,
		logger:  logger,
		backoff: 5 * time.Second,
	}
}

// Start blocks until ctx is cancelled.
func (c *TickConsumer) Start(ctx context.Context) {
	c.logger.Info("sqs tick consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Info("sqs tick consumer stopping")
			return
		}
		if !c.poll(ctx) {
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
		}
	}
}

// poll handles at most one message. It returns false when the receive
// itself failed and the caller should back off.
func (c *TickConsumer) poll(ctx context.Context) bool {
	msg, handle, err := c.queue.ReceiveMessage(ctx)
	if errors.Is(err, sqs.ErrInvalidMessage) {
		c.logger.Warn("dropping malformed tick")
		c.delete(ctx, handle)
		return true
	}
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("sqs receive failed", zap.Error(err))
		}
		return false
	}
	if msg == nil {
		return true
	}

	metrics.SetSQSMessagesInFlight(1)
	defer metrics.SetSQSMessagesInFlight(0)

	if _, err := c.engine.Dispatch(ctx, msg.Tick); err != nil {
		delay := retryDelays[min(c.failed, len(retryDelays)-1)]
		c.failed++
		c.logger.Error("tick job failed, leaving for redelivery",
			zap.String("job", msg.Job),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		if err := c.queue.ChangeVisibility(ctx, handle, int32(delay.Seconds())); err != nil {
			c.logger.Warn("failed to change tick visibility", zap.Error(err))
		}
		return true
	}

	c.failed = 0
	c.delete(ctx, handle)
	return true
}

func (c *TickConsumer) delete(ctx context.Context, handle string) {
	if handle == "" {
		return
	}
	if err := c.queue.DeleteMessage(ctx, handle); err != nil {
		c.logger.Warn("failed to delete tick", zap.Error(err))
	}
}
