package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"tryonapi/config"
	"tryonapi/logging"
	"tryonapi/tasks"
	"tryonapi/tryon"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "console").Fatal("config load failed", zap.Error(err))
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	if !cfg.Queue.Enabled() {
		log.Fatal("ASYNC_BROKER_ADDRESS is not set, the worker has nothing to consume")
	}
	if cfg.Client.APIKey == "" {
		log.Warn("No client API key configured; every try-on job will fail until one is set")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.App.Release,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
	if err != nil {
		log.Fatal("sentry.Init failed", zap.Error(err))
	}
	defer sentry.Flush(2 * time.Second)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddress},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				cfg.Queue.Name: 7,
			},
			Logger: log.Sugar(),
		},
	)

	client := tryon.NewClient(cfg.Client, tryon.WithLogger(log))
	log.Info("Try-on worker starting",
		zap.String("queue", cfg.Queue.Name),
		zap.Int("concurrency", cfg.Queue.Concurrency),
		zap.String("target", client.Target().Kind().String()),
		zap.String("endpoint", client.Target().Endpoint()))

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeTryOnGenerate, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleTryOnGenerationTask(ctx, t, client, log)
	})

	if err := srv.Run(mux); err != nil {
		log.Fatal("worker stopped", zap.Error(err))
	}
}
