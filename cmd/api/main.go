package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"tryonapi/config"
	"tryonapi/controllers"
	"tryonapi/logging"
	"tryonapi/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "console").Fatal("config load failed", zap.Error(err))
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

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

	upstream := services.NewSeedreamUpstream(cfg.Relay.UpstreamURL, cfg.Relay.UserAgent, nil)

	var enqueuer services.TaskEnqueuer
	var jobs services.TryOnJobCacheProvider
	if cfg.Queue.Enabled() {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddress}
		asynqClient := asynq.NewClient(redisOpt)
		defer asynqClient.Close()
		asynqInspector := asynq.NewInspector(redisOpt)
		defer asynqInspector.Close()

		jobCache, err := services.NewTryOnJobCache(asynqInspector, cfg.Queue.Name, cfg.Kiosk.ResultRetention, log)
		if err != nil {
			log.Fatal("Failed to initialize job cache", zap.Error(err))
		}
		enqueuer = asynqClient
		jobs = jobCache
	} else {
		log.Info("No broker configured, try-on job routes are disabled")
	}

	e := controllers.SetupServer(cfg, upstream, enqueuer, jobs, log)

	log.Info("SeedREAM relay starting",
		zap.String("address", cfg.Relay.Address()),
		zap.String("health", "/health"),
		zap.String("proxy_endpoint", "/api/seedream/generate"),
		zap.String("upstream", cfg.Relay.UpstreamURL))
	if cfg.Relay.APIKey == "" {
		log.Warn("SEEDREAM_API_KEY environment variable not set; callers must send x-seedream-api-key")
	}

	go func() {
		if err := e.Start(cfg.Relay.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("relay server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("Shutdown signal received, stopping relay...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("relay shutdown failed", zap.Error(err))
	}
}
