package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/app"
	"github.com/lalithlochan/remindr/internal/config"
	"github.com/lalithlochan/remindr/internal/engine"
	"github.com/lalithlochan/remindr/internal/observ"
	"github.com/lalithlochan/remindr/internal/sqs"
)

const service = "remindctl"

// pipeline is the engine surface the commands drive.
type pipeline interface {
	RunReminders(ctx context.Context, limit int) (*engine.ReminderSummary, error)
	RunOutbox(ctx context.Context, opts engine.OutboxOptions) (*engine.OutboxSummary, error)
	PendingCount(ctx context.Context, userID uuid.UUID) (int, error)
	CleanupTask(ctx context.Context, taskID uuid.UUID) (*engine.CleanupResult, error)
}

type enqueuer interface {
	Enqueue(ctx context.Context, tick engine.Tick) (string, error)
}

type commandContext struct {
	jsonFlag *bool

	once    sync.Once
	config  *config.Config
	logger  *zap.Logger
	initErr error

	app *app.App

	// overridden in tests
	newPipeline func(ctx context.Context) (pipeline, error)
	newEnqueuer func(ctx context.Context) (enqueuer, error)
}

func newCommandContext(jsonFlag *bool) *commandContext {
	c := &commandContext{jsonFlag: jsonFlag}
	c.newPipeline = c.buildPipeline
	c.newEnqueuer = c.buildEnqueuer
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, *zap.Logger, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.initErr = err
			return
		}
		logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, service)
		if err != nil {
			c.initErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.logger, c.initErr
}

func (c *commandContext) buildPipeline(ctx context.Context) (pipeline, error) {
	cfg, logger, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger, service)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a.Engine, nil
}

func (c *commandContext) buildEnqueuer(ctx context.Context) (enqueuer, error) {
	cfg, logger, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.AWS.SQSQueueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is not set")
	}
	return sqs.NewProducer(ctx, app.SQSConfig(cfg), logger)
}

func (c *commandContext) withPipeline(cmd *cobra.Command, fn func(pipeline) error) error {
	p, err := c.newPipeline(cmd.Context())
	if err != nil {
		return err
	}
	defer c.close()
	return fn(p)
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
