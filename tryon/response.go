package tryon

import (
	"encoding/json"
	"fmt"

	"tryonapi/models"
)

// replyCheck inspects a decoded 2xx reply and returns a failure, or nil to
// let the next check run.
type replyCheck func(*models.GenerationResponse) error

// Order matters: the first failing check wins.
var replyChecks = []replyCheck{
	checkProviderError,
	checkHasImages,
	checkFirstImageError,
	checkFirstImageURL,
}

func interpretReply(status int, statusText string, body []byte) (string, error) {
	if status < 200 || status > 299 {
		return "", statusFailure(status, statusText, body)
	}

	var reply models.GenerationResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", wrapError(err)
	}
	for _, check := range replyChecks {
		if err := check(&reply); err != nil {
			return "", err
		}
	}
	return reply.Data[0].URL, nil
}

func checkProviderError(reply *models.GenerationResponse) error {
	if reply.Error == nil {
		return nil
	}
	return providerFailure(reply.Error, fmt.Sprintf("API error: %s", reply.Error.Code))
}

func checkHasImages(reply *models.GenerationResponse) error {
	if len(reply.Data) == 0 {
		return newError(noImagesMessage, "")
	}
	return nil
}

func checkFirstImageError(reply *models.GenerationResponse) error {
	if reply.Data[0].Error == nil {
		return nil
	}
	return providerFailure(reply.Data[0].Error, imageFailedMessage)
}

func checkFirstImageURL(reply *models.GenerationResponse) error {
	if reply.Data[0].URL == "" {
		return newError(noImageURLMessage, "")
	}
	return nil
}

func providerFailure(pe *models.ProviderError, fallback string) *Error {
	message := pe.Message
	if message == "" {
		message = fallback
	}
	return newError(message, pe.Code)
}

// errorEnvelope matches both the provider's {"error": {code, message}} body
// and the relay's own {"error": KIND, "message": ...} body.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Details string          `json:"details"`
}

func statusFailure(status int, statusText string, body []byte) *Error {
	generic := fmt.Sprintf("HTTP %d: %s", status, statusText)

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return newError(generic, "")
	}

	var pe models.ProviderError
	if err := json.Unmarshal(env.Error, &pe); err == nil {
		if pe.Message == "" {
			return newError(generic, pe.Code)
		}
		return newError(pe.Message, pe.Code)
	}

	var kind string
	if err := json.Unmarshal(env.Error, &kind); err == nil && kind != "" {
		message := env.Message
		if message == "" {
			message = generic
		}
		relayErr := newError(message, kind)
		relayErr.Details = env.Details
		return relayErr
	}
	return newError(generic, "")
}
