// Package main is the Lambda entrypoint for scheduled reminder runs.
//
// An EventBridge schedule invokes it with a detail of
// {"job":"reminders"|"outbox","limit":N,"emails":bool,"sms":bool}.
// Dependencies are built once per cold start and reused across invocations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/app"
	"github.com/lalithlochan/remindr/internal/config"
	"github.com/lalithlochan/remindr/internal/engine"
	"github.com/lalithlochan/remindr/internal/observ"
)

const service = "reminder-lambda"

// Handler runs one tick per invocation.
type Handler struct {
	engine interface {
		Dispatch(ctx context.Context, t engine.Tick) (any, error)
	}
	logger *zap.Logger
}

// ParseTick reads the tick from an EventBridge detail. An empty detail
// runs the reminders job.
func ParseTick(event events.CloudWatchEvent) (engine.Tick, error) {
	var tick engine.Tick
	if len(event.Detail) == 0 || string(event.Detail) == "null" {
		return tick, nil
	}
	if err := json.Unmarshal(event.Detail, &tick); err != nil {
		return tick, fmt.Errorf("invalid tick detail: %w", err)
	}
	return tick, nil
}

func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) (any, error) {
	tick, err := ParseTick(event)
	if err != nil {
		h.logger.Error("rejecting scheduled event", zap.String("event_id", event.ID), zap.Error(err))
		return nil, err
	}

	result, err := h.engine.Dispatch(ctx, tick)
	if err != nil {
		h.logger.Error("scheduled job failed",
			zap.String("event_id", event.ID),
			zap.String("job", tick.Job),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg, logger, service)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}

	h := &Handler{engine: a.Engine, logger: logger}
	lambda.Start(h.Handle)
}
