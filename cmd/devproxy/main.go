package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"tryonapi/config"
	"tryonapi/controllers"
	"tryonapi/logging"
	"tryonapi/tryon"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "console").Fatal("config load failed", zap.Error(err))
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	origin, providerPath, err := cfg.Relay.UpstreamOrigin()
	if err != nil {
		log.Fatal("invalid upstream url", zap.Error(err))
	}

	e := controllers.SetupDevProxy(origin, providerPath, log)
	log.Info("Development proxy starting",
		zap.String("address", cfg.DevProxy.Address()),
		zap.String("prefix", tryon.DevProxyPath),
		zap.String("target", origin.String()+providerPath))

	if err := e.Start(cfg.DevProxy.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("development proxy failed", zap.Error(err))
	}
}
