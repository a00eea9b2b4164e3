package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/api"
	"github.com/lalithlochan/remindr/internal/app"
	"github.com/lalithlochan/remindr/internal/config"
	"github.com/lalithlochan/remindr/internal/metrics"
	"github.com/lalithlochan/remindr/internal/observ"
	"github.com/lalithlochan/remindr/internal/sqs"
	"github.com/lalithlochan/remindr/internal/worker"
)

const service = "reminder-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, service)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting reminder api",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, service)
	if err != nil {
		return err
	}
	defer a.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.AWS.SQSQueueURL != "" {
		consumer, err := sqs.NewConsumer(ctx, app.SQSConfig(cfg), logger)
		if err != nil {
			logger.Warn("sqs consumer unavailable, queued ticks will not be processed", zap.Error(err))
		} else {
			go worker.NewTickConsumer(consumer, a.Engine, logger).Start(workerCtx)
		}
	}

	if cfg.Engine.TickInterval > 0 {
		ticker := worker.NewTicker(a.Engine, worker.Config{Interval: cfg.Engine.TickInterval}, logger)
		go ticker.Start(workerCtx)
		logger.Info("in-process ticker started", zap.Duration("interval", cfg.Engine.TickInterval))
	}

	handler := api.NewHandler(logger, a.Engine, a.Repo)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.TriggerTokenMiddleware(cfg.API.TriggerToken))
		r.Use(api.RateLimitMiddleware(a.RateLimiter, logger, api.IPKeyFunc))
		handler.Routes(r)
	})

	r.Get("/health", handler.Health)
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		workerCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
