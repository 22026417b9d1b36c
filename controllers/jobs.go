package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tryonapi/config"
	"tryonapi/models"
	"tryonapi/services"
	"tryonapi/tasks"
	"tryonapi/tryon"
)

// TryOnJobsController queues kiosk generations on the broker and reports
// their status.
type TryOnJobsController struct {
	Enqueuer services.TaskEnqueuer
	Jobs     services.TryOnJobCacheProvider
	Queue    string
	Kiosk    config.KioskConfig
	Logger   *zap.Logger
}

func (controller *TryOnJobsController) TryOnJobRoutes(g *echo.Group) {
	g.POST("", controller.CreateJob)
	g.GET("/:id", controller.GetJob)
}

func (controller *TryOnJobsController) CreateJob(c echo.Context) error {
	if controller.Enqueuer == nil {
		return relayError(c, http.StatusServiceUnavailable, models.KindQueueUnavailable, "Try-on queue is not configured", "")
	}

	var req models.TryOnJobIn
	if err := c.Bind(&req); err != nil {
		return relayError(c, http.StatusBadRequest, models.KindInvalidRequest, "Invalid request body", "")
	}
	if err := c.Validate(&req); err != nil {
		return relayError(c, http.StatusBadRequest, models.KindInvalidRequest, "Invalid request body", validationDetails(err))
	}

	task, err := tasks.NewTryOnGenerationTask(tryon.ConvertToAPIBase64Format(req.PersonImageBase64), req.OutfitImageURL)
	if err != nil {
		return err
	}
	info, err := controller.Enqueuer.EnqueueContext(c.Request().Context(), task,
		asynq.TaskID(uuid.NewString()),
		asynq.Queue(controller.Queue),
		asynq.MaxRetry(controller.Kiosk.MaxRetry),
		asynq.Timeout(controller.Kiosk.ProcessingTimeout),
		asynq.Retention(controller.Kiosk.ResultRetention),
	)
	if err != nil {
		sentry.CaptureException(err)
		controller.Logger.Error("Could not enqueue try-on job", zap.Error(err))
		return relayError(c, http.StatusServiceUnavailable, models.KindQueueUnavailable, "Could not start generation, please try again", "")
	}

	services.TryOnJobsTotal.WithLabelValues(services.OutcomeEnqueued).Inc()
	controller.Logger.Info("Try-on job enqueued",
		zap.String("job_id", info.ID),
		zap.String("queue", info.Queue))
	return c.JSON(http.StatusAccepted, models.TryOnJobResponse{ID: info.ID, Status: models.TryOnJobPending})
}

func (controller *TryOnJobsController) GetJob(c echo.Context) error {
	if controller.Jobs == nil {
		return relayError(c, http.StatusServiceUnavailable, models.KindQueueUnavailable, "Try-on queue is not configured", "")
	}

	job, err := controller.Jobs.GetJob(c.Request().Context(), c.Param("id"))
	if errors.Is(err, services.ErrJobNotFound) {
		return relayError(c, http.StatusNotFound, models.KindNotFound, "Try-on job not found", "")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

func validationDetails(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}
