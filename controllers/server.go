package controllers

import (
	"net/http"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tryonapi/config"
	"tryonapi/services"
	"tryonapi/tryon"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// SetupServer wires the relay endpoint. enqueuer and jobs may be nil when no
// broker is configured; the job routes then answer QUEUE_UNAVAILABLE.
func SetupServer(
	cfg *config.Config,
	upstream services.UpstreamProvider,
	enqueuer services.TaskEnqueuer,
	jobs services.TryOnJobCacheProvider,
	logger *zap.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: validator.New()}

	endpoints := []string{
		"GET /health - Health check",
		"POST " + tryon.RelayRoutePath + " - SeedREAM API proxy",
		"POST " + generateAliasPath + " - SeedREAM API proxy (alias)",
	}
	if enqueuer != nil {
		endpoints = append(endpoints,
			"POST /api/tryon/jobs - Queue a try-on generation",
			"GET /api/tryon/jobs/:id - Try-on job status",
		)
	}
	e.HTTPErrorHandler = NewHTTPErrorHandler(endpoints, logger)

	e.Use(ZapRecover(logger))
	e.Use(middleware.RequestID())
	e.Use(ZapRequestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Relay.AllowedOrigins,
		AllowCredentials: true,
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			tryon.APIKeyHeader,
		},
	}))
	e.Use(middleware.BodyLimit(cfg.Relay.BodyLimit))
	if cfg.Relay.RateLimit > 0 {
		e.Use(RateLimiter(cfg.Relay.RateLimit))
	}
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))

	relayController := RelayController{Upstream: upstream, APIKey: cfg.Relay.APIKey, Logger: logger}
	relayController.RelayRoutes(e)

	jobsController := TryOnJobsController{
		Enqueuer: enqueuer,
		Jobs:     jobs,
		Queue:    cfg.Queue.Name,
		Kiosk:    cfg.Kiosk,
		Logger:   logger,
	}
	jobsController.TryOnJobRoutes(e.Group("/api/tryon/jobs"))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
