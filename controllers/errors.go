package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tryonapi/models"
)

const (
	notFoundMessage      = "Endpoint not found"
	internalErrorMessage = "An unexpected error occurred"
)

func relayError(c echo.Context, status int, kind models.ErrorKind, message, details string) error {
	return c.JSON(status, models.RelayErrorResponse{
		Error:   kind,
		Message: message,
		Details: details,
	})
}

// NewHTTPErrorHandler renders every error that escapes a handler in the
// relay error body shape. Unknown routes list endpoints; anything that is
// not a client error becomes INTERNAL_ERROR.
func NewHTTPErrorHandler(endpoints []string, logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}

		var body models.RelayErrorResponse
		switch {
		case status == http.StatusNotFound || status == http.StatusMethodNotAllowed:
			status = http.StatusNotFound
			body = models.RelayErrorResponse{
				Error:              models.KindNotFound,
				Message:            notFoundMessage,
				AvailableEndpoints: endpoints,
			}
		case status == http.StatusRequestEntityTooLarge:
			body = models.RelayErrorResponse{Error: models.KindPayloadTooLarge, Message: "Request body is too large"}
		case status == http.StatusTooManyRequests:
			body = models.RelayErrorResponse{Error: models.KindRateLimited, Message: "Too many requests, please slow down"}
		case status >= 400 && status < 500:
			body = models.RelayErrorResponse{Error: models.KindInvalidRequest, Message: fmt.Sprint(he.Message)}
		default:
			status = http.StatusInternalServerError
			body = models.RelayErrorResponse{Error: models.KindInternalError, Message: internalErrorMessage}
			logger.Error("Unexpected error",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err))
			if hub := sentryecho.GetHubFromContext(c); hub != nil {
				hub.CaptureException(err)
			} else {
				sentry.CaptureException(err)
			}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Warn("Could not write error response", zap.Error(writeErr))
		}
	}
}
