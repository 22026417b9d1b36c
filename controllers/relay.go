package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tryonapi/logging"
	"tryonapi/models"
	"tryonapi/services"
	"tryonapi/tryon"
)

const (
	generateAliasPath    = "/generate"
	healthMessage        = "SeedREAM Proxy Server is running"
	missingAPIKeyMessage = "SeedREAM API key is required. Set SEEDREAM_API_KEY environment variable or pass x-seedream-api-key header."
	proxyErrorMessage    = "Internal proxy server error"
)

var errInvalidJSONBody = errors.New("request body is not valid JSON")

// RelayController forwards generation bodies to the upstream provider.
type RelayController struct {
	Upstream services.UpstreamProvider
	// APIKey is the process-wide credential. When set it wins over the
	// request headers.
	APIKey string
	Logger *zap.Logger
}

func (controller *RelayController) RelayRoutes(e *echo.Echo) {
	e.GET("/health", controller.Health)
	e.POST(tryon.RelayRoutePath, controller.Generate)
	e.POST(generateAliasPath, controller.Generate)
}

func (controller *RelayController) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", Message: healthMessage})
}

func (controller *RelayController) Generate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		return errInvalidJSONBody
	}

	apiKey, source := controller.resolveAPIKey(c)
	if apiKey == "" {
		services.RelayRequestsTotal.WithLabelValues(services.OutcomeMissingKey).Inc()
		return relayError(c, http.StatusBadRequest, models.KindAPIKeyMissing, missingAPIKeyMessage, "")
	}

	summary := services.SummarizeBody(body)
	log := controller.Logger.With(zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
	log.Info("Proxying request to SeedREAM API",
		zap.Strings("body_keys", summary.Keys),
		zap.Int("image_inputs", summary.ImageCount),
		zap.String("model", summary.Model),
		zap.String("key_source", source),
		zap.String("api_key", logging.MaskSecret(apiKey)))

	reply, err := controller.Upstream.Forward(c.Request().Context(), apiKey, body)
	if err != nil {
		services.RelayRequestsTotal.WithLabelValues(services.OutcomeProxyError).Inc()
		log.Error("Proxy server error", zap.Error(err))
		if hub := sentryecho.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		return relayError(c, http.StatusInternalServerError, models.KindProxyError, proxyErrorMessage, err.Error())
	}

	if reply.StatusCode < 200 || reply.StatusCode > 299 {
		services.RelayRequestsTotal.WithLabelValues(services.OutcomeUpstreamError).Inc()
		log.Warn("SeedREAM API error",
			zap.Int("status", reply.StatusCode),
			zap.ByteString("body", reply.Body))
		return c.JSONBlob(reply.StatusCode, reply.Body)
	}

	services.RelayRequestsTotal.WithLabelValues(services.OutcomeRelayed).Inc()
	var usage struct {
		Usage *models.GenerationUsage `json:"usage"`
	}
	if json.Unmarshal(reply.Body, &usage) == nil && usage.Usage != nil {
		log.Info("SeedREAM API success",
			zap.Int("generated_images", usage.Usage.GeneratedImages),
			zap.Int("total_tokens", usage.Usage.TotalTokens))
	} else {
		log.Info("SeedREAM API success")
	}
	return c.JSONBlob(http.StatusOK, reply.Body)
}

func (controller *RelayController) resolveAPIKey(c echo.Context) (string, string) {
	if controller.APIKey != "" {
		return controller.APIKey, "environment"
	}
	if key := c.Request().Header.Get(tryon.APIKeyHeader); key != "" {
		return key, "header"
	}
	// clients that do not recognise the relay URL send the key as a bearer token
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if key, ok := strings.CutPrefix(auth, "Bearer "); ok && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), "bearer"
	}
	return "", ""
}
